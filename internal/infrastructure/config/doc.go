// Package config handles loading and validating Gray Media Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYMEDIA_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// The renderers section carries the identification policy: the default
// renderer, the forced-default flag and the forced-IP override string. These
// can also be changed at runtime through the admin API or MQTT; the file only
// sets the startup values.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret signs admin tokens and must be at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Renderers.ForceIP)
package config
