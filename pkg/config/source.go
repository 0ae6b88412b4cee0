package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// source resolves a key from the environment first, then from the config file.
type source struct {
	path string
	file map[string]string
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
}

// newSource reads the optional TOML file. Keys are the environment variable
// names, e.g. POSTGRES_DSN = "postgres://...".
func newSource(path string) (*source, error) {
	src := &source{path: path, file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return src, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var raw map[string]any
	if err := toml.NewDecoder(file).Decode(&raw); err != nil {
		return src, fmt.Errorf("failed to decode config: %w", err)
	}
	for key, value := range raw {
		switch v := value.(type) {
		case map[string]any, []any:
			return src, fmt.Errorf("config key %s must be a scalar", key)
		default:
			src.file[key] = fmt.Sprint(v)
		}
	}
	return src, nil
}

func (s *source) lookup(key string) (string, bool) {
	if value := os.Getenv(key); value != "" {
		return value, true
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value, true
	}
	return "", false
}

func (s *source) getEnvStr(key, fallback string) string {
	if value, ok := s.lookup(key); ok {
		return value
	}
	return fallback
}

func (s *source) getEnvNum(key string, fallback int) int {
	if value, ok := s.lookup(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func (s *source) getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := s.lookup(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (s *source) getEnvBool(key string, fallback bool) bool {
	if value, ok := s.lookup(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
