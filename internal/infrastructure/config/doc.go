// Package config handles loading and validating the AMBEO bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with AMBEO_* environment variables
//   - Validation of required fields and soundbar entries
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and the JWT secret should be set via environment variables
//   - The MQTT password is redacted in String and JSON output
//
// Usage:
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    return err
//	}
//	for _, sb := range cfg.Soundbars {
//	    fmt.Println(sb.ID, sb.Host)
//	}
package config
