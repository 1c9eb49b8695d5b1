// Package config provides environment-based configuration.
//
// Loads from .env file (godotenv, done in main), maps env vars to the Config
// struct, and validates required fields and numeric ranges.
package config
