package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// OverrideSource supplies invocation counts that replace the declared ones
// for a test identifier.
type OverrideSource interface {
	InvocationCount(id string) (int, bool)
}

// Apply returns cfg with the invocation count replaced when src has an
// override for id. Without an override cfg is returned unchanged.
func Apply(cfg ExecutionConfig, id string, src OverrideSource) ExecutionConfig {
	if src == nil {
		return cfg
	}
	if n, ok := src.InvocationCount(id); ok && n >= 0 {
		return cfg.WithInvocationCount(n)
	}
	return cfg
}

const (
	envPrefix    = "PERFKIT"
	activeKey    = "perfkit.active"
	countSuffix  = ".invocations"
	keySeparator = "::"
)

// PropertiesSource reads overrides from a properties, YAML or JSON file and
// from PERFKIT_* environment variables. Keys have the form
// "<test id>.invocations"; test ids may contain dots.
//
// Example perfkit.properties:
//
//	perfkit.active=true
//	checkout.ListOrders.invocations=20
//
// The same override from the environment:
//
//	PERFKIT_CHECKOUT_LISTORDERS_INVOCATIONS=20
type PropertiesSource struct {
	v *viper.Viper
}

// NewPropertiesSource creates a source backed by the file at path. An empty
// path reads the environment only.
func NewPropertiesSource(path string) (*PropertiesSource, error) {
	// dotted test ids are single keys, so nesting uses a different delimiter
	v := viper.NewWithOptions(
		viper.KeyDelimiter(keySeparator),
		viper.WithCodecRegistry(overrideCodecs()),
	)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_", keySeparator, "_"))
	v.AutomaticEnv()
	v.SetDefault(activeKey, true)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read overrides: %w", err)
		}
		v.SetConfigFile(path)
		if strings.HasSuffix(strings.ToLower(path), ".properties") {
			v.SetConfigType("properties")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read overrides: %w", err)
		}
	}

	return &PropertiesSource{v: v}, nil
}

// InvocationCount implements OverrideSource.
func (p *PropertiesSource) InvocationCount(id string) (int, bool) {
	key := id + countSuffix
	if !p.v.IsSet(key) {
		return 0, false
	}
	n := p.v.GetInt(key)
	if n < 0 {
		return 0, false
	}
	return n, true
}

// Active reports whether measurement is enabled. When inactive the
// workload should run once without measurement.
func (p *PropertiesSource) Active() bool {
	return p.v.GetBool(activeKey)
}

// JSONSource looks overrides up in a JSON document of the form
// {"tests": {"<id>": {"invocations": 20}}}.
type JSONSource struct {
	data []byte
}

// NewJSONSource wraps a JSON document. Invalid JSON is rejected.
func NewJSONSource(data []byte) (*JSONSource, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON overrides")
	}
	return &JSONSource{data: data}, nil
}

// InvocationCount implements OverrideSource.
func (j *JSONSource) InvocationCount(id string) (int, bool) {
	result := gjson.GetBytes(j.data, "tests."+escapePathComponent(id)+".invocations")
	if !result.Exists() || result.Type != gjson.Number {
		return 0, false
	}
	n := int(result.Int())
	if n < 0 {
		return 0, false
	}
	return n, true
}

// escapePathComponent escapes characters with a meaning in gjson paths.
func escapePathComponent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Sources combines several sources; the first one with an override wins.
type Sources []OverrideSource

// InvocationCount implements OverrideSource.
func (s Sources) InvocationCount(id string) (int, bool) {
	for _, src := range s {
		if src == nil {
			continue
		}
		if n, ok := src.InvocationCount(id); ok {
			return n, true
		}
	}
	return 0, false
}

// Active reports false when any source that can switch measurement off
// does so.
func (s Sources) Active() bool {
	for _, src := range s {
		if a, ok := src.(interface{ Active() bool }); ok && !a.Active() {
			return false
		}
	}
	return true
}
