package mock_importer

//go:generate -command mockgen go run go.uber.org/mock/mockgen -destination=./mocks.go github.com/jbmorley/psion-software-index/importer
//go:generate mockgen Extractor
