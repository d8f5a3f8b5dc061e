// Package config loads, normalizes, and validates coursetrack configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// COURSETRACK_LOG_LEVEL and COURSETRACK_BACKEND. The Config value is passed
// explicitly into the scanner, reconciliation engine, and progress persister
// at construction; nothing reads settings from package-level state.
package config
