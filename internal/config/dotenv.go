package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"todolist-app-go/pkg/logger"
)

const dotenvFilename = ".env"

// loadDotEnv applies the nearest .env file (or DOTENV_PATH) to the process
// environment. Variables that are already set win over the file.
func loadDotEnv(log logger.Logger) error {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		found, err := findUp(dotenvFilename)
		if err != nil {
			return err
		}
		path = found
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := parseDotEnv(file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	loaded, skipped := 0, 0
	for _, entry := range values {
		if _, exists := os.LookupEnv(entry.key); exists {
			skipped++
			continue
		}
		if err := os.Setenv(entry.key, entry.value); err != nil {
			return err
		}
		loaded++
	}

	log.Info("config.dotenv: loaded variables", "count", loaded, "skipped", skipped, "path", path)
	return nil
}

type envEntry struct {
	key   string
	value string
}

func findUp(filename string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func parseDotEnv(r io.Reader) ([]envEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []envEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, raw, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		entries = append(entries, envEntry{key: key, value: parseValue(strings.TrimSpace(raw))})
	}

	return entries, scanner.Err()
}

func parseValue(raw string) string {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		if raw[0] == '"' {
			if unquoted, err := strconv.Unquote(raw); err == nil {
				return unquoted
			}
		}
		return raw[1 : len(raw)-1]
	}

	// An inline comment starts at a # preceded by whitespace.
	for i := 1; i < len(raw); i++ {
		if raw[i] == '#' && (raw[i-1] == ' ' || raw[i-1] == '\t') {
			return strings.TrimSpace(raw[:i-1])
		}
	}
	return raw
}
