// Package config loads and validates the toolgate YAML configuration.
//
// Configuration is read once at process start; there is no runtime reload.
// Values in the format ${VAR_NAME} are expanded from the environment before
// parsing, so secrets and host-specific paths can stay out of the file.
package config
