// Package config handles configuration loading for the visioncount console.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and defaults matching the behavior the
// original browser dashboard hard-coded (2s poll interval, 3s reconnect delay).
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from VISIONCOUNT_CONFIG environment variable
//  2. XDG_CONFIG_HOME/visioncount/console.yaml
//  3. ~/.config/visioncount/console.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	identity:
//	  anon_key: ${VISIONCOUNT_ANON_KEY}
//
// Unset variables expand to the empty string.
package config
