// Package config loads Skynet's process-wide configuration: a YAML
// file plus environment overrides via viper, with live reload backed
// by fsnotify, replacing the teacher's config/config.go INI file
// (github.com/robfig/config) with the pack's viper-based convention.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var defaultConfigFiles = []string{
	"/etc/skynet/skynet.yaml",
	"./skynet.yaml",
}

// Loader resolves per-service options from a YAML document keyed by
// service name and, within that, by version, falling back to the
// unversioned section when no versioned one exists (grounded on
// config/config.go's getSection).
type Loader struct {
	v *viper.Viper
}

// New builds a Loader reading from path, or the first of
// defaultConfigFiles that exists when path is empty. Unrecognized
// keys are never rejected — spec.md §4.H only asks that known keys be
// validated.
func New(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SKYNET")
	v.AutomaticEnv()

	if path == "" {
		for _, f := range defaultConfigFiles {
			v.SetConfigFile(f)
			if err := v.ReadInConfig(); err == nil {
				return &Loader{v: v}, nil
			}
		}
		// No config file found; environment-only configuration is valid.
		return &Loader{v: v}, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return &Loader{v: v}, nil
}

// Watch arms live reload: fn is called (with the fsnotify event that
// triggered it) every time the backing file changes on disk.
func (l *Loader) Watch(fn func(fsnotify.Event)) {
	l.v.OnConfigChange(fn)
	l.v.WatchConfig()
}

func (l *Loader) section(service, version string) string {
	key := strings.ToLower(service) + "." + strings.ToLower(version)
	if l.v.IsSet(key) {
		return key
	}
	return strings.ToLower(service)
}

func (l *Loader) String(service, version, option string) (string, error) {
	key := l.section(service, version) + "." + option
	if !l.v.IsSet(key) {
		return "", fmt.Errorf("config: %q not set", key)
	}
	return l.v.GetString(key), nil
}

func (l *Loader) Bool(service, version, option string) (bool, error) {
	key := l.section(service, version) + "." + option
	if !l.v.IsSet(key) {
		return false, fmt.Errorf("config: %q not set", key)
	}
	return l.v.GetBool(key), nil
}

func (l *Loader) Int(service, version, option string) (int, error) {
	key := l.section(service, version) + "." + option
	if !l.v.IsSet(key) {
		return 0, fmt.Errorf("config: %q not set", key)
	}
	return l.v.GetInt(key), nil
}

// StringDefault reads a top-level key with no service/version scoping,
// e.g. the store backend address.
func (l *Loader) StringDefault(option, def string) string {
	if !l.v.IsSet(option) {
		return def
	}
	return l.v.GetString(option)
}

// IntDefault reads a top-level key with no service/version scoping.
func (l *Loader) IntDefault(option string, def int) int {
	if !l.v.IsSet(option) {
		return def
	}
	return l.v.GetInt(option)
}

// StringSliceDefault reads a top-level list key with no service/version
// scoping, e.g. registry.servers.
func (l *Loader) StringSliceDefault(option string, def []string) []string {
	if !l.v.IsSet(option) {
		return def
	}
	return l.v.GetStringSlice(option)
}

// TopLevelKeys lists every key set at the document's root, so a caller
// can warn about ones it doesn't recognize without rejecting them
// (spec.md §4.H).
func (l *Loader) TopLevelKeys() []string {
	settings := l.v.AllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	return keys
}
