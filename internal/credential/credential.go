// Package credential loads the single static partner API key.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const DefaultFile = "api_key.txt"

var ErrEmpty = errors.New("credential: api key is empty")

// Load returns the API key from envValue when set, otherwise from the first
// line of path. Surrounding whitespace, including a trailing newline, is
// always stripped.
func Load(envValue, path string) (string, error) {
	if key := strings.TrimSpace(envValue); key != "" {
		return key, nil
	}
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("credential: read %s: %w", path, err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	key := strings.TrimSpace(line)
	if key == "" {
		return "", ErrEmpty
	}
	return key, nil
}

// FromEnv reads STEAM_API_KEY, falling back to STEAM_API_KEY_FILE.
func FromEnv() (string, error) {
	return Load(os.Getenv("STEAM_API_KEY"), os.Getenv("STEAM_API_KEY_FILE"))
}
