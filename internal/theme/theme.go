// Package theme handles theme selection, syntax highlighting styles, and CSS generation.
package theme

import (
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/debemdeboas/postboard/internal/cache"
	"github.com/debemdeboas/postboard/internal/config"
)

// GetThemeFromRequest returns the page theme from the theme cookie, falling back to the
// configured default. Unknown cookie values are ignored.
func GetThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieTheme); err == nil {
		if cookie.Value == config.LightTheme || cookie.Value == config.DarkTheme {
			return cookie.Value
		}
	}
	return config.AppConfig.Theme.Default
}

// Opposite returns the theme a toggle switches to.
func Opposite(theme string) string {
	if theme == config.DarkTheme {
		return config.LightTheme
	}
	return config.DarkTheme
}

func GetDefaultSyntaxTheme(theme string) string {
	if theme == config.LightTheme {
		return config.AppConfig.Theme.SyntaxHighlighting.DefaultLight
	}
	return config.AppConfig.Theme.SyntaxHighlighting.DefaultDark
}

func GetSyntaxThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil && IsSyntaxTheme(cookie.Value) {
		return cookie.Value
	}
	return GetDefaultSyntaxTheme(GetThemeFromRequest(r))
}

func IsSyntaxTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

func GetSyntaxThemes() []string {
	styleNames := styles.Names()
	slices.Sort(styleNames)
	return styleNames
}

func GetFormatter() *html.Formatter {
	return html.New(
		html.WithClasses(true),
		html.TabWidth(4),
		html.WithLineNumbers(true),
		html.WrapLongLines(true),
	)
}

// GenerateSyntaxCSS returns the stylesheet for a chroma style. Unknown names use the
// chroma fallback style. Results are cached per name.
func GenerateSyntaxCSS(theme string) template.CSS {
	if css, ok := cache.GetSyntaxCSS(theme); ok {
		return css
	}

	style := styles.Get(theme)

	var buf strings.Builder
	bg := style.Get(chroma.Background)
	if !bg.Colour.IsSet() && luminance(bg.Background) > 0.5 {
		// Light backgrounds without a text colour would otherwise inherit the page colour.
		buf.WriteString(".chroma { color: #181818; }\n")
	}

	if err := GetFormatter().WriteCSS(&buf, style); err != nil {
		return ""
	}

	css := template.CSS(buf.String())
	cache.SetSyntaxCSS(theme, css)
	return css
}

func luminance(c chroma.Colour) float64 {
	return (0.299*float64(c.Red()) + 0.587*float64(c.Green()) + 0.114*float64(c.Blue())) / 255
}

func GetThemeIcon(theme string) string {
	if theme == config.LightTheme {
		return config.DarkThemeIcon
	}
	return config.LightThemeIcon
}
