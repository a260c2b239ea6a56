// Package config loads the spawnpipe settings from a TOML or YAML file, SPAWNPIPE_ environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "SPAWNPIPE_"

// ErrUnsupportedFormat is returned for a config file that is neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Config holds every spawnpipe setting. Fields map to the flag named after them, e.g.
// ContinueOnError is set by --continue-on-error.
type Config struct {
	Config string

	Mode    string        `toml:"command.mode" env:"MODE"`
	Cmd     string        `toml:"command.cmd" env:"CMD"`
	Args    []string      `toml:"command.args" env:"ARGS"`
	Cwd     string        `toml:"command.cwd" env:"CWD"`
	Env     []string      `toml:"command.env" env:"ENV"`
	Timeout time.Duration `toml:"command.timeout" env:"TIMEOUT"`
	Rename  string        `toml:"command.rename" env:"RENAME"`

	Stream          bool   `toml:"pipeline.stream" env:"STREAM"`
	Out             string `toml:"pipeline.out" env:"OUT"`
	ContinueOnError bool   `toml:"pipeline.continue_on_error" env:"CONTINUE_ON_ERROR"`
	MaxErrors       int    `toml:"pipeline.max_errors" env:"MAX_ERRORS"`
	Draw            string `toml:"pipeline.draw" env:"DRAW"`
	MetricsAddr     string `toml:"metrics.addr" env:"METRICS_ADDR"`

	LogLevel  string `toml:"log.level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log.format" env:"LOG_FORMAT"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		Mode:      "stream",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig fills cfg from the file named by cfg.Config and from the environment. Fields whose
// flag was explicitly set in flags are left untouched. flags may be nil.
func LoadConfig(cfg *Config, flags *pflag.FlagSet) error {
	changed := make(map[string]bool)
	if flags != nil {
		flags.Visit(func(f *pflag.Flag) {
			changed[f.Name] = true
		})
	}

	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	if cfg.Config != "" {
		data, err := readFile(cfg.Config)
		if err != nil {
			return err
		}

		for i := range t.NumField() {
			field := t.Field(i)
			if changed[fieldNameToFlag(field.Name)] {
				continue
			}

			path := field.Tag.Get("toml")
			if path == "" {
				continue
			}

			value := getNestedValue(data, path)
			if value == nil {
				continue
			}

			err := setFieldValue(v.Field(i), value)
			if err != nil {
				return errors.Wrapf(err, "invalid value for %s in %s", path, cfg.Config)
			}
		}
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if changed[fieldNameToFlag(field.Name)] {
			continue
		}

		key := field.Tag.Get("env")
		if key == "" {
			continue
		}

		value, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || value == "" {
			continue
		}

		err := setFieldValueFromString(v.Field(i), value)
		if err != nil {
			return errors.Wrapf(err, "invalid value for %s%s", EnvPrefix, key)
		}
	}

	return nil
}

// readFile decodes a TOML or YAML file, chosen by extension, into a generic map.
func readFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", path)
	}

	data := map[string]any{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(content, &data)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &data)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %s", path)
	}

	return data, nil
}

// fieldNameToFlag converts a struct field name to a flag name, e.g. "LogLevel" -> "log-level".
func fieldNameToFlag(fieldName string) string {
	var result []rune

	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}

		result = append(result, unicode.ToLower(r))
	}

	return string(result)
}

// getNestedValue retrieves a value from a nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}

		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue sets a field from a value decoded from a config file.
func setFieldValue(field reflect.Value, value any) error {
	if field.Type() == durationType {
		switch val := value.(type) {
		case string:
			return setFieldValueFromString(field, val)
		case int64:
			field.SetInt(int64(time.Duration(val) * time.Second))
		case int:
			field.SetInt(int64(time.Duration(val) * time.Second))
		default:
			return errors.Errorf("expected a duration, got %T", value)
		}

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return errors.Errorf("expected a string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return errors.Errorf("expected a boolean, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int:
		switch i := value.(type) {
		case int64:
			field.SetInt(i)
		case int:
			field.SetInt(int64(i))
		default:
			return errors.Errorf("expected an integer, got %T", value)
		}
	case reflect.Slice:
		arr, ok := value.([]any)
		if !ok {
			return errors.Errorf("expected a list, got %T", value)
		}

		slice := make([]string, len(arr))
		for i, item := range arr {
			slice[i] = toString(item)
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return errors.Errorf("unsupported field kind %s", field.Kind())
	}

	return nil
}

func toString(value any) string {
	switch val := value.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// setFieldValueFromString sets a field from an environment variable. Lists are comma separated.
func setFieldValueFromString(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrap(err, "unable to parse duration")
		}
		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrap(err, "unable to parse boolean")
		}
		field.SetBool(b)
	case reflect.Int:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.Wrap(err, "unable to parse integer")
		}
		field.SetInt(i)
	case reflect.Slice:
		parts := strings.Split(value, ",")
		slice := make([]string, len(parts))
		for i, part := range parts {
			slice[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return errors.Errorf("unsupported field kind %s", field.Kind())
	}

	return nil
}
