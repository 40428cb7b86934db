package containers

import (
	"testing"

	"github.com/jbmorley/psion-software-index/test"
)

func TestMain(m *testing.M) {
	test.Main(m)
}
