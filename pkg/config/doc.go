// Package config loads env-tagged configuration structs for notifykit
// processes. It wraps github.com/caarlos0/env and reads an optional .env file
// through github.com/joho/godotenv.
//
// Every component package exposes its own Config struct (pg.Config,
// queue.Config, notifications.Config, ...) and the binary loads each of them:
//
//	var pgCfg pg.Config
//	config.MustLoad(&pgCfg)
//
// Parsed values are cached per type, so repeated loads are cheap and return
// the same values for the life of the process.
package config
