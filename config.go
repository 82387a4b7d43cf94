package qcache

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape accepted by LoadConfig. Durations use the
// string grammar of ParseDuration; verify_percent is optional and keeps
// the engine default when absent.
type FileConfig struct {
	Prefix        string   `yaml:"prefix"`
	DefaultTTL    string   `yaml:"default_ttl"`
	DefaultGrace  string   `yaml:"default_grace"`
	VerifyPercent *float64 `yaml:"verify_percent"`
}

// LoadConfig reads engine options from a YAML file. `${VAR}` references
// are expanded from the environment and error when unset; `$$` emits a
// literal `$`. Unknown fields are rejected.
func LoadConfig(path string) ([]Option, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("qcache: read config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig parses YAML config bytes into engine options.
func ParseConfig(raw []byte) ([]Option, error) {
	expanded, err := expandEnvStrict(string(raw))
	if err != nil {
		return nil, fmt.Errorf("qcache: expand config: %w", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("qcache: parse config: %w", err)
	}

	var opts []Option
	if fc.Prefix != "" {
		opts = append(opts, WithPrefix(fc.Prefix))
	}
	if fc.DefaultTTL != "" {
		d, err := ParseDuration(fc.DefaultTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDefaultTTL(d))
	}
	if fc.DefaultGrace != "" {
		d, err := ParseDuration(fc.DefaultGrace)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDefaultGrace(d))
	}
	if fc.VerifyPercent != nil {
		opts = append(opts, WithVerifyPercent(*fc.VerifyPercent))
	}
	return opts, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvStrict expands `${VAR}` references, erroring on unset
// variables. `$$` escapes a literal dollar.
func expandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00QCACHE_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(match[1]); !ok {
			missing[match[1]] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(keys, ", "))
	}

	s = envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
	return strings.ReplaceAll(s, dollarSentinel, "$"), nil
}
