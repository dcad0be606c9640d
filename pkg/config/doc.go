// Package config loads service configuration from CAMPFIRE_* environment
// variables, with an optional YAML file overlay via CAMPFIRE_CONFIG_FILE.
// Environment variables always win over the file.
package config
