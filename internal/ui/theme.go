// Package ui holds the terminal color themes shared by the CLI, the usage
// text and the error handler.
package ui

import (
	"os"
	"sort"
	"sync"
)

// Theme maps output roles to ANSI escape codes. The empty string disables a
// role.
type Theme struct {
	Name string
	// Primary marks names: families, coefficients, flags.
	Primary string
	// Secondary marks numbers and defaults.
	Secondary string
	Success   string
	Warning   string
	Error     string
	Bold      string
	// Dim is used for aliased coefficients and other absent values.
	Dim   string
	Reset string
}

var (
	// DarkTheme suits dark terminal backgrounds.
	DarkTheme = Theme{
		Name:      "dark",
		Primary:   "\033[38;5;39m",
		Secondary: "\033[38;5;245m",
		Success:   "\033[38;5;82m",
		Warning:   "\033[38;5;220m",
		Error:     "\033[38;5;196m",
		Bold:      "\033[1m",
		Dim:       "\033[2m",
		Reset:     "\033[0m",
	}

	// LightTheme suits light terminal backgrounds.
	LightTheme = Theme{
		Name:      "light",
		Primary:   "\033[38;5;27m",
		Secondary: "\033[38;5;240m",
		Success:   "\033[38;5;28m",
		Warning:   "\033[38;5;130m",
		Error:     "\033[38;5;124m",
		Bold:      "\033[1m",
		Dim:       "\033[2m",
		Reset:     "\033[0m",
	}

	// NoColorTheme produces plain text.
	NoColorTheme = Theme{Name: "none"}
)

var themes = map[string]Theme{
	DarkTheme.Name:    DarkTheme,
	LightTheme.Name:   LightTheme,
	NoColorTheme.Name: NoColorTheme,
}

var (
	current = DarkTheme
	mu      sync.RWMutex
)

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetCurrentTheme installs t. Tests use it to restore state.
func SetCurrentTheme(t Theme) {
	mu.Lock()
	defer mu.Unlock()
	current = t
}

// SetTheme activates the theme called name and reports whether it exists.
// Unknown names leave the dark theme active.
func SetTheme(name string) bool {
	t, ok := themes[name]
	if !ok {
		t = DarkTheme
	}
	SetCurrentTheme(t)
	return ok
}

// ThemeNames lists the available themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitTheme picks the theme for a run: colors are disabled by noColor or by
// the NO_COLOR environment variable (https://no-color.org/), whatever its
// value.
func InitTheme(noColor bool) {
	if _, set := os.LookupEnv("NO_COLOR"); noColor || set {
		SetCurrentTheme(NoColorTheme)
		return
	}
	SetCurrentTheme(DarkTheme)
}

// Paint wraps s in code and a reset. An empty code returns s unchanged.
func (t Theme) Paint(code, s string) string {
	if code == "" {
		return s
	}
	return code + s + t.Reset
}
