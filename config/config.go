package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

// Config returns a required environment variable, loading .env on first use.
// Missing required configuration is a startup failure.
func Config(envVar string) string {
	loadDotEnv()

	envVarValue := os.Getenv(envVar)
	if envVarValue == "" {
		fmt.Fprintf(os.Stderr, "%s not set\n", envVar)
		os.Exit(1)
	}

	return envVarValue
}

// ConfigOr returns an environment variable or the given fallback when unset.
func ConfigOr(envVar, fallback string) string {
	loadDotEnv()

	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func loadDotEnv() {
	loadEnv.Do(func() {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "no .env file found, reading from environment")
		}
	})
}
