// Package testutil holds helpers shared by the tests of several packages.
package testutil

import "regexp"

// csiSequence matches the SGR escape sequences emitted by the ui themes.
var csiSequence = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripAnsiCodes returns s without terminal escape sequences, so that
// assertions on themed output do not depend on the active theme.
func StripAnsiCodes(s string) string {
	return csiSequence.ReplaceAllString(s, "")
}
