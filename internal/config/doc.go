// Package config loads and validates the tether YAML configuration.
// ${VAR} references are expanded from the environment before parsing,
// and duration fields are given as strings ("5s", "2m").
package config
