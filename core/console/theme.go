package console

import (
	"encoding/json"
	"strings"
)

// Theme is a visitor's appearance preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// NormalizeTheme maps arbitrary input onto a valid theme. Anything that
// is not "dark" is light.
func NormalizeTheme(raw string) Theme {
	if Theme(strings.ToLower(strings.TrimSpace(raw))) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// DecodeStoredTheme reads a persisted theme value; ok is false when
// nothing usable was stored. Older clients stored a JSON envelope like
// {"mode":"dark"}; both forms are accepted.
func DecodeStoredTheme(raw string) (Theme, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ThemeLight, false
	}
	if strings.HasPrefix(trimmed, "{") {
		var legacy struct {
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal([]byte(trimmed), &legacy); err != nil || legacy.Mode == "" {
			return ThemeLight, false
		}
		return NormalizeTheme(legacy.Mode), true
	}
	return NormalizeTheme(trimmed), true
}

// ResolveTheme picks the effective appearance: a stored preference wins,
// otherwise the reported system preference decides.
func ResolveTheme(stored Theme, hasStored, systemDark bool) Theme {
	if hasStored {
		return stored
	}
	if systemDark {
		return ThemeDark
	}
	return ThemeLight
}

// ToggleTheme flips between the two themes.
func ToggleTheme(current Theme) Theme {
	if current == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
