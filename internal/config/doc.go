// Package config loads, normalizes, and validates reelforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the worker daemon
// and CLI need: queue database location, staging and output directories,
// worker timing, render tool binaries, and generation provider credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
