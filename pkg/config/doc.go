// Package config loads typed configuration structs from environment
// variables with github.com/caarlos0/env and optional .env files read by
// github.com/joho/godotenv.
//
// Every infrastructure package in notifykit (pg, redis, mongo, httpserver)
// exposes its own Config struct with env tags, and cmd/notifyd loads each
// with Load or MustLoad. Parsed structs are cached per type.
package config
