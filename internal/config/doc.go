// Package config handles configuration loading, parsing, and validation
// from various sources (defaults, an optional config file, environment
// variables and command-line flags). It provides type-safe access to the
// settings of the HTTP server, the task engine and the dataset provider.
package config
