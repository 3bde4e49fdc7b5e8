package config

const (
	// Config errors
	ErrReadConfigFmt           = "failed to read config file: %w"
	ErrParseConfigFmt          = "failed to parse config file: %w"
	ErrValidateConfigFmt       = "invalid configuration: %w"
	ErrInvalidFieldFmt         = "invalid configuration: %s=%v fails %q"
	ErrBackendFieldRequiredFmt = "invalid configuration: %s required for the %s backend"

	// Storage errors
	ErrOpenStoreFmt = "Failed to open post store: %v"
	ErrLoadPosts    = "Error loading posts"

	// HTTP errors
	ErrPostNotFound        = "Post not found"
	ErrInternalServerError = "Internal server error"
	ErrTooManyLikes        = "Too many likes, slow down"
)
