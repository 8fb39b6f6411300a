// Package config loads coordinator settings from environment variables.
// Unset variables fall back to defaults; malformed values warn and keep the
// default so a bad deployment never prevents startup.
package config
