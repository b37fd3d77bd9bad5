// Package config persists rttap tool settings as YAML in the platform
// config directory (~/.config/rttap/config.yaml on Linux).
//
// The file holds the probe bridge endpoint, the default firmware ELF, the
// target's RAM map for full scans, and the attach retry budget. All of it
// is optional: a missing file means built-in defaults, and every CLI flag
// overrides its config counterpart.
//
// The configuration is loaded lazily and exactly once per process.
package config
