package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = make(map[reflect.Type]any)
)

// Load fills v from environment variables using `env` struct tags.
// A .env file in the working directory is read once per process if present.
// Each config type is parsed at most once; later calls get the cached copy.
//
//	type Config struct {
//		MaxRetries int           `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
//		BaseDelay  time.Duration `env:"NOTIFY_RETRY_BASE_DELAY" envDefault:"60s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// A missing .env file is the normal case outside local development.
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load for startup code paths; it panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
