// Package config defines the archpack settings shared by all binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills defaults for every optional field, so a loaded Config is
// ready to use. The registry token is never stored in the file: the
// settings only name the environment variable that holds it.
package config
