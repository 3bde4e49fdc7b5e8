// Package routes defines HTTP route patterns for the application.
package routes

const (
	// Static and assets
	RobotsPath = "/robots.txt"
	StaticPath = "/static/"
	HealthPath = "/healthz"

	// Theme
	ThemeToggle    = "/theme/toggle"
	SyntaxThemeSet = "/syntax-theme/set"
	SyntaxThemeGet = "/syntax-theme/{theme}"

	// SSE
	SSEPath = "/sse"

	// Posts
	RootPath   = "/"
	IndexPath  = "/{$}"
	PostPath   = "/posts/{id}"
	AddPath    = "/add"
	UpdatePath = "/update/{id}"
	DeletePath = "/delete/{id}"
	LikePath   = "/like/{id}"
)
