// Package config loads and validates the fyshare server configuration.
//
// The file format is YAML. JSON is a subset of YAML, so configuration files
// written as JSON load unchanged. Values of the form ${VAR_NAME} are
// expanded from the environment before parsing, and path values starting
// with "~" are expanded to the user's home directory.
package config
