package test

import (
	"path/filepath"

	"go.uber.org/mock/gomock"
)

// Some helpers for using gomock.

// BaseMatcher is a [gomock.Matcher] for file paths that compares only the
// final element. It's useful for paths under scratch directories, which
// aren't known when expectations are set.
type BaseMatcher string

var _ gomock.Matcher = BaseMatcher("")

// Base returns a [BaseMatcher] for "name".
func Base(name string) BaseMatcher { return BaseMatcher(name) }

// Matches implements [gomock.Matcher].
func (b BaseMatcher) Matches(x any) bool {
	p, ok := x.(string)
	return ok && filepath.Base(p) == string(b)
}

// String implements [gomock.Matcher].
func (b BaseMatcher) String() string {
	return "has base name " + string(b)
}
