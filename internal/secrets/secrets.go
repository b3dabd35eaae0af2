// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and webhook URLs from a directory of
// plain-text files. Each file in the directory represents one secret: the
// filename is the key name and the file contents (trimmed) are the value.
//
// Supported key files: zhipu-api-key, doubao-api-key, openai-api-key,
// dashscope-api-key, anthropic-api-key, feishu-webhook.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Set maps secret names to values.
type Set map[string]string

// Load reads all files in dir and returns a Set of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty Set.
// Unreadable files are logged and skipped.
func Load(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Set)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			s[name] = value
		}
	}

	return s, nil
}

// Get returns the environment variable env when it is set and non-empty,
// otherwise the secret stored under file.
func (s Set) Get(env, file string) string {
	if env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return s[file]
}

// Keys returns the loaded secret names, sorted. Values are never exposed.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
