// Package file stores sercha-sync configuration as a TOML file,
// by default ~/.sercha-sync/config.toml.
package file
