package branding

import (
	"embed"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// Files contains the branding assets embedded into the binary.
//
//go:embed theme.yaml
var Files embed.FS

// Theme is the palette and font scheme written into every generated deck.
type Theme struct {
	Name    string  `yaml:"name"`
	Fonts   Fonts   `yaml:"fonts"`
	Palette Palette `yaml:"palette"`
}

type Fonts struct {
	Major FontSet `yaml:"major"`
	Minor FontSet `yaml:"minor"`
}

// FontSet names the typeface per script; Scripts lists per-script fallbacks
// for text the latin face cannot cover.
type FontSet struct {
	Latin         string       `yaml:"latin"`
	EastAsian     string       `yaml:"east_asian"`
	ComplexScript string       `yaml:"complex_script"`
	Scripts       []ScriptFont `yaml:"scripts"`
}

type ScriptFont struct {
	Script   string `yaml:"script"`
	Typeface string `yaml:"typeface"`
}

// Palette colours are six-digit RGB hex without a leading '#'.
type Palette struct {
	Dark1             string `yaml:"dark1"`
	Light1            string `yaml:"light1"`
	Dark2             string `yaml:"dark2"`
	Light2            string `yaml:"light2"`
	Accent1           string `yaml:"accent1"`
	Accent2           string `yaml:"accent2"`
	Accent3           string `yaml:"accent3"`
	Accent4           string `yaml:"accent4"`
	Accent5           string `yaml:"accent5"`
	Accent6           string `yaml:"accent6"`
	Hyperlink         string `yaml:"hyperlink"`
	FollowedHyperlink string `yaml:"followed_hyperlink"`
}

var hexColor = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

var (
	defaultOnce  sync.Once
	defaultTheme Theme
	defaultErr   error
)

// Default returns the embedded theme.
func Default() (Theme, error) {
	defaultOnce.Do(func() {
		data, err := Files.ReadFile("theme.yaml")
		if err != nil {
			defaultErr = fmt.Errorf("read theme: %w", err)
			return
		}
		defaultTheme, defaultErr = Parse(data)
	})
	return defaultTheme, defaultErr
}

// Parse decodes and validates a theme document.
func Parse(data []byte) (Theme, error) {
	var t Theme
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Theme{}, fmt.Errorf("parse theme: %w", err)
	}
	if t.Name == "" {
		t.Name = "pptxd"
	}
	if t.Fonts.Major.Latin == "" || t.Fonts.Minor.Latin == "" {
		return Theme{}, fmt.Errorf("theme %q: major and minor latin fonts are required", t.Name)
	}
	p := t.Palette
	for name, c := range map[string]string{
		"dark1": p.Dark1, "light1": p.Light1, "dark2": p.Dark2, "light2": p.Light2,
		"accent1": p.Accent1, "accent2": p.Accent2, "accent3": p.Accent3,
		"accent4": p.Accent4, "accent5": p.Accent5, "accent6": p.Accent6,
		"hyperlink": p.Hyperlink, "followed_hyperlink": p.FollowedHyperlink,
	} {
		if !hexColor.MatchString(c) {
			return Theme{}, fmt.Errorf("theme %q: palette %s = %q is not an RGB hex colour", t.Name, name, c)
		}
	}
	return t, nil
}
