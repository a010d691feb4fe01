// Package config provides configuration management for the swarm core service.
//
// Configuration is loaded from environment variables using the env package,
// after reading an optional .env file from the working directory.
// All configuration values have sensible defaults for development use; the
// Redis relay, LLM backend and snapshot exporter stay disabled until their
// address, key or endpoint is set.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
