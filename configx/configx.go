// Package configx builds a read-only configuration tree from defaults and
// environment variables.
//
//	cfg, err := configx.NewBuilder().
//		WithDefaults(map[string]any{"mongo": map[string]any{"uri": "mongodb://localhost:27017"}}).
//		FromEnv("PROJECTX_").
//		RequireEnv("PROJECTX_MONGO_URI").
//		Build()
//
//	uri := cfg.Get("mongo.uri").AsString()
//
// Environment keys are lowercased and underscores become dots, so
// PROJECTX_MONGO_URI is read as "mongo.uri".
//
// Decode fills a struct tagged for github.com/caarlos0/env from the same
// prefixed environment; fields with no variable keep their current value:
//
//	cfg := Defaults()
//	err := configx.NewBuilder().FromEnv("PROJECTX_").Decode(&cfg)
package configx

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Conversia-AI/craftable-projection/errx"
)

var ErrorRegistry = errx.NewRegistry("CONFIG")

var (
	ErrMissingEnv   = ErrorRegistry.Register("MISSING_ENV", errx.TypeValidation, http.StatusBadRequest, "Required environment variables are not set")
	ErrInvalidValue = ErrorRegistry.Register("INVALID_VALUE", errx.TypeValidation, http.StatusBadRequest, "Configuration value is invalid")
)

// Builder accumulates configuration sources; later sources win
type Builder struct {
	values   map[string]any
	prefix   string
	required []string
	environ  func() []string
	lookup   func(string) (string, bool)
}

// NewBuilder creates an empty builder reading the process environment
func NewBuilder() *Builder {
	return &Builder{
		values:  make(map[string]any),
		environ: os.Environ,
		lookup:  os.LookupEnv,
	}
}

// WithDefaults merges a (possibly nested) map of defaults
func (b *Builder) WithDefaults(defaults map[string]any) *Builder {
	flatten("", defaults, b.values)
	return b
}

// With sets a single dotted key
func (b *Builder) With(key string, value any) *Builder {
	b.values[strings.ToLower(key)] = value
	return b
}

// WithEnvironment replaces the process environment as the source for
// FromEnv, RequireEnv and Decode
func (b *Builder) WithEnvironment(vars map[string]string) *Builder {
	b.environ = func() []string {
		out := make([]string, 0, len(vars))
		for k, v := range vars {
			out = append(out, k+"="+v)
		}
		return out
	}
	b.lookup = func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
	return b
}

// FromEnv loads every environment variable carrying prefix
func (b *Builder) FromEnv(prefix string) *Builder {
	b.prefix = prefix
	for name, value := range env.ToMap(b.environ()) {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		key = strings.ReplaceAll(key, "_", ".")
		if key == "" {
			continue
		}
		b.values[key] = value
	}
	return b
}

// RequireEnv fails Build when any of the variables is unset or empty
func (b *Builder) RequireEnv(names ...string) *Builder {
	b.required = append(b.required, names...)
	return b
}

// Build validates and freezes the configuration
func (b *Builder) Build() (*Config, error) {
	if err := b.checkRequired(); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	return &Config{values: values}, nil
}

// Decode parses the prefixed environment into target, a pointer to a struct
// with env tags. Variables that are not set leave their field untouched.
func (b *Builder) Decode(target any) error {
	if err := b.checkRequired(); err != nil {
		return err
	}

	err := env.ParseWithOptions(target, env.Options{
		Prefix:      b.prefix,
		Environment: env.ToMap(b.environ()),
	})
	if err != nil {
		return ErrorRegistry.NewWithCause(ErrInvalidValue, err).WithDetail("prefix", b.prefix)
	}
	return nil
}

func (b *Builder) checkRequired() error {
	var missing []string
	for _, name := range b.required {
		if v, ok := b.lookup(name); !ok || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return ErrorRegistry.New(ErrMissingEnv).WithDetail("variables", strings.Join(missing, ", "))
	}
	return nil
}

// Config is an immutable key/value view
type Config struct {
	values map[string]any
}

// Get returns the value at a dotted key
func (c *Config) Get(key string) Value {
	v, ok := c.values[strings.ToLower(key)]
	return Value{key: key, raw: v, set: ok}
}

// Keys lists all keys in lexical order
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AllSettings returns the configuration as a nested map
func (c *Config) AllSettings() map[string]any {
	out := make(map[string]any)
	for _, k := range c.Keys() {
		parts := strings.Split(k, ".")
		node := out
		for i, p := range parts {
			if i == len(parts)-1 {
				node[p] = c.values[k]
				break
			}
			next, ok := node[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[p] = next
			}
			node = next
		}
	}
	return out
}

// Value is a single configuration entry with typed accessors
type Value struct {
	key string
	raw any
	set bool
}

// IsSet reports whether the key exists
func (v Value) IsSet() bool { return v.set }

func (v Value) AsString() string {
	if !v.set || v.raw == nil {
		return ""
	}
	if s, ok := v.raw.(string); ok {
		return s
	}
	return fmt.Sprint(v.raw)
}

// AsStringOr returns def when the key is unset or empty
func (v Value) AsStringOr(def string) string {
	if s := v.AsString(); s != "" {
		return s
	}
	return def
}

func (v Value) AsInt() int {
	n, _ := v.Int()
	return n
}

// Int parses the value as an integer
func (v Value) Int() (int, error) {
	switch t := v.raw.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case nil:
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.AsString()))
	if err != nil {
		return 0, ErrorRegistry.NewWithCause(ErrInvalidValue, err).WithDetail("key", v.key)
	}
	return n, nil
}

func (v Value) AsBool() bool {
	switch t := v.raw.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v.AsString()))
	return b
}

// Duration parses the value as a time.Duration
func (v Value) Duration() (time.Duration, error) {
	switch t := v.raw.(type) {
	case time.Duration:
		return t, nil
	case nil:
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v.AsString()))
	if err != nil {
		return 0, ErrorRegistry.NewWithCause(ErrInvalidValue, err).WithDetail("key", v.key)
	}
	return d, nil
}

func (v Value) AsDuration() time.Duration {
	d, _ := v.Duration()
	return d
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
