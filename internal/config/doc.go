// Package config provides environment-based configuration.
//
// Loads an optional .env file (godotenv), then reads individual variables
// with defaults and validates ranges.
package config
