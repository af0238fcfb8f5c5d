// Package config loads the daemon configuration: a JSON file, then an
// environment overlay for secrets, then defaults and validation.
package config
