// Package file loads the mnemo configuration from a TOML file and overlays
// environment variables on top of it.
//
// The default location is ~/.mnemo/config.toml. Missing files are not an
// error: defaults apply.
package file
