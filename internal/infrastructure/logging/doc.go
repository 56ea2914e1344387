// Package logging provides structured logging for the AMBEO bridge.
//
// It wraps log/slog so that every component logs with the same default
// fields (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("bridge starting", "soundbars", len(cfg.Soundbars))
//
// Never log MQTT passwords or JWT secrets.
package logging
