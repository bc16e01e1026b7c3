// Package config provides configuration management for SafeShell.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.safeshell/config.yaml and is automatically
// created with sensible defaults on first use. The file structure mirrors
// the Go structs defined in this package.
//
// # Environment Variables
//
// All configuration values can be overridden using environment variables
// with the SAFESHELL_ prefix. Nested fields are separated by underscores.
//
// Examples:
//   - SAFESHELL_SHELL_PREFERRED=pwsh
//   - SAFESHELL_AI_ENDPOINT=http://127.0.0.1:11434
//   - SAFESHELL_EXEC_TIMEOUT=45s
//   - SAFESHELL_LOGGING_LEVEL=debug
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Safety policy is deliberately not configurable beyond the tier override
// table path: the tier-4 lockdown and the fail-closed validation policy have
// no configuration toggles.
package config
