package model

import (
	"html/template"
	"net/http"

	"github.com/debemdeboas/postboard/internal/config"
	"github.com/debemdeboas/postboard/internal/theme"
)

type PageData struct {
	SiteName string
	Tagline  string

	PageURL string

	Theme string

	SyntaxCSS    template.CSS
	SyntaxTheme  string
	SyntaxThemes []string

	LiveReload bool
}

func NewPageData(r *http.Request) *PageData {
	syntaxTheme := theme.GetSyntaxThemeFromRequest(r)
	return &PageData{
		SiteName:     config.AppConfig.Site.Name,
		Tagline:      config.AppConfig.Site.Tagline,
		PageURL:      r.URL.Path,
		Theme:        theme.GetThemeFromRequest(r),
		SyntaxTheme:  syntaxTheme,
		SyntaxThemes: theme.GetSyntaxThemes(),
		SyntaxCSS:    theme.GenerateSyntaxCSS(syntaxTheme),
		LiveReload:   config.AppConfig.Features.LiveReload.Enabled,
	}
}

// IsIndex reports whether the page is the post list, which is the only page
// that subscribes to live reload events.
func (pd *PageData) IsIndex() bool {
	return pd.PageURL == "/"
}
