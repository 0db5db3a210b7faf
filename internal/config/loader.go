package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// varExpr matches ${NAME} and ${NAME:-fallback} placeholders in the raw
// YAML. The bot token normally arrives this way, keeping secrets out of
// the file itself.
var varExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads path, substitutes environment placeholders, decodes the
// YAML, and fills unset fields with the built-in defaults. Structural
// validation is a separate step (Validate) so callers can report every
// problem at once.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	resolved, err := substitute(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(resolved, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.defaults()
	return &cfg, nil
}

// substitute resolves every placeholder against the environment, taking
// the inline fallback when the variable is unset. Placeholders with
// neither a value nor a fallback are reported together in one joined
// error.
func substitute(raw []byte) ([]byte, error) {
	var missing []error

	out := varExpr.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := varExpr.FindSubmatch(match)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if groups[2] != nil {
			return groups[2]
		}

		missing = append(missing, fmt.Errorf("unresolved variable %s", name))
		return match
	})

	return out, errors.Join(missing...)
}
