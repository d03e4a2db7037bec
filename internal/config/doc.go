// Package config loads, normalizes, and validates falcon configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML or YAML files, and honours environment fallbacks such
// as CROMWELL_URL and CAAS_KEY. The Config type centralizes every knob the
// dispatcher and CLI need, and is built once at startup then handed to each
// component by pointer.
//
// Always obtain settings through this package so downstream code receives
// canonical workflow statuses, expanded paths, and clear validation errors.
package config
