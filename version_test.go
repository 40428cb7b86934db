package softwareindex

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type compareTestcase struct {
	Name string
	A, B string
	Want int
}

func (tc compareTestcase) Run(t *testing.T) {
	t.Logf("%q ? %q", tc.A, tc.B)
	if got := CompareVersions(tc.A, tc.B); got != tc.Want {
		t.Errorf("got: %d, want: %d", got, tc.Want)
	}
	if got := CompareVersions(tc.B, tc.A); got != -tc.Want {
		t.Errorf("reversed: got: %d, want: %d", got, -tc.Want)
	}
}

func TestCompareVersions(t *testing.T) {
	tt := []compareTestcase{
		{Name: "Equal", A: "1.0", B: "1.0", Want: 0},
		{Name: "Numeric", A: "2.0", B: "10.0", Want: -1},
		{Name: "Minor", A: "1.5", B: "1.10", Want: -1},
		{Name: "Prefix", A: "1.0", B: "1.0.1", Want: -1},
		{Name: "DigitsFirst", A: "1", B: "a", Want: -1},
		{Name: "Suffix", A: "1.0a", B: "1.0b", Want: -1},
		{Name: "LeadingZero", A: "01", B: "1", Want: -1},
		{Name: "Unknown", A: "5.20", B: UnknownVersion, Want: -1},
		{Name: "Long", A: "99999999999999999999999", B: "100000000000000000000000", Want: -1},
		{Name: "Empty", A: "", B: "1", Want: -1},
	}
	for _, tc := range tt {
		t.Run(tc.Name, tc.Run)
	}
}

func TestVersionOrdering(t *testing.T) {
	got := []string{"2.0", "10.0", "1.5"}
	slices.SortFunc(got, CompareVersions)
	want := []string{"1.5", "2.0", "10.0"}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
}
