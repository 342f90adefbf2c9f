// Package config provides configuration management for keyrunner.
//
// Configuration is loaded from a single directory. The default directory is
// ~/.config/keyrunner; commands accept --config-path to use another one.
//
// # Configuration Directory
//
//   - config.yaml: the main configuration file
//   - history/: persisted suite results, one JSON file per run
//
// A missing config.yaml is not an error: GetDefaultConfig supplies every
// value. Fields present in the file override the defaults field by field.
//
// # Example
//
//	logging:
//	  level: info
//	runner:
//	  parallel: 2
//	  step_timeout: 30s
//	  store_history: true
//	cases:
//	  path: ./cases
//	databases:
//	  main:
//	    driver: sqlite
//	    dsn: ./test.db
//
// # Storage
//
// Storage is a small file store keyed by entity type and name. Names are
// sanitized before they are used as file names.
package config
