package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/soultalk/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name in Config.
const EnvPrefix = "SOULTALK_"

const defaultEnvFile = ".env"

// loadEnvFile seeds the process environment from a dotenv file. Variables
// already set win over the file. An explicit -env-file must exist; the
// implicit ".env" is optional.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ParseEnv overlays SOULTALK_* environment variables onto cfg. Unset
// variables leave the current value untouched.
func ParseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func parseEnv(config *Config) {
	if err := loadEnvFile(flagx.EnvFileFlags()); err != nil {
		panic(err)
	}
	if err := ParseEnv(config); err != nil {
		panic(err)
	}
}
