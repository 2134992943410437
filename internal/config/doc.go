// Package config provides configuration management for the grain bid
// pipeline. It loads settings from environment variables and an optional
// YAML file, validates them, and exposes a type-safe API.
//
// # Configuration Sources
//
// Configuration is resolved in order of precedence:
//
//	1. The config file named by GRAINBIDS_CONFIG (default config.yaml)
//	2. Environment variables
//	3. Struct defaults
//
// All environment variables are namespaced GRAINBIDS_*:
//
//	GRAINBIDS_SERVER_PORT=8080
//	GRAINBIDS_LOGGING_LEVEL=debug
//	GRAINBIDS_PIPELINE_DROP_UNROUTED=true
//
// # Sources File
//
// The bid-side configuration (co-op sources, processor routing rules and
// default futures prices) lives in a separate YAML file so it can be
// edited without touching server settings:
//
//	sources:
//	  - name: Dunkerton Coop
//	    url: https://www.dunkertoncoop.com/markets
//	rules:
//	  - name: ADM Cedar Rapids
//	    patterns: [cedar rapids]
//	    commodity: corn
//	futures:
//	  corn: "4.60"
//	  soybeans: "11.50"
//
// Rule order is a contract: rules are evaluated top to bottom and the
// first match wins, so reordering them changes routing behavior.
//
// The core pipeline receives these as plain immutable structures and never
// reads the environment or any secret store directly.
package config
