package config

// Version is the back-office binary version.
// Set at build time via: -ldflags "-X github.com/backofficehq/backoffice/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
