// Package config loads YAML configuration files into typed structs.
//
// Before parsing, ${VAR} and $VAR references are replaced from the
// environment. ${VAR:-fallback} uses fallback when VAR is unset or empty.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config types that check themselves after
// loading.
type Validator interface {
	Validate() error
}

// Expand substitutes environment references in s.
func Expand(s string) string {
	return os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" || !hasFallback {
			return v
		}
		return fallback
	})
}

// Load reads filename, expands environment references and decodes it over
// target, so fields absent from the file keep their current values. If
// target implements Validator it is validated afterwards.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(Expand(string(data))), target); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return validate(target)
}

// LoadOptional behaves like Load but accepts a missing file, in which case
// target is only validated.
func LoadOptional[T any](filename string, target *T) error {
	err := Load(filename, target)
	if errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return err
}

func validate(target any) error {
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config: invalid: %w", err)
		}
	}
	return nil
}
