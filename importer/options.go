package importer

import (
	"maps"
	"slices"
)

// Options configures an Importer.
//
// The tables are copied by [New]; later changes to an Options value don't
// affect an Importer built from it.
type Options struct {
	// Languages is the name priority order. The first language with an entry
	// in an artifact's localized names wins. The empty string matches names
	// recorded without a language.
	Languages []string
	// Ignored lists file names (exact, case-sensitive) that are never
	// imported.
	Ignored []string
	// ReservedSegments lists path fragments; artifacts whose path contains one
	// are never imported.
	ReservedSegments []string
	// TagMapping renames recognized types and eras before they're used as
	// tags.
	TagMapping map[string]string
	// Concurrency bounds the number of artifacts imported at once. Values
	// less than 1 mean GOMAXPROCS.
	Concurrency int
	// FatalMissingName makes an installer without a usable name stop the run
	// instead of being skipped.
	FatalMissingName bool
	// TempDir is where scratch directories are created. The default temporary
	// directory is used if empty.
	TempDir string
}

// DefaultLanguages is the default name priority order.
var defaultLanguages = []string{"en_GB", "en_US", "en_AU", "fr_FR", "de_DE", "it_IT", "nl_NL", "bg_BG", ""}

// DefaultIgnored lists installers known to break the tool or to duplicate
// system components.
var defaultIgnored = []string{
	"netutils.sis",
	"NETUTILS.SIS",
	"NetUtils.sis",
	"nEzumi 2.sis",
	"RevoSDK.zip",
	"SCOMMSW.SIS",
	"cclock.sis",
	"japoleon.sis",
	"GeneWar.sis",
	"Re-mem.app",
	"RateCalc.sis",
	"CubeLine.sis",
	"WinEPOC.sis",
	"PsiStatsPro.sis",
}

var defaultTagMapping = map[string]string{
	"opl": "opl",
	"opo": "opl",
	"opa": "opl",
	"er5": "epoc32",
}

// DefaultOptions returns the standard tables.
func DefaultOptions() Options {
	return Options{
		Languages:        slices.Clone(defaultLanguages),
		Ignored:          slices.Clone(defaultIgnored),
		ReservedSegments: []string{"System/Install"},
		TagMapping:       maps.Clone(defaultTagMapping),
	}
}
