package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a yaml config file plus everything its include list names,
// merges them in order (later files win), fills unset keys with defaults
// and validates the result.
func Load(path string) (*Config, error) {
	files, err := expandIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	markSetKeys("", v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Render serializes the effective config as yaml using the same field
// names Load reads, so the output loads back unchanged.
func (c *Config) Render() ([]byte, error) {
	var out map[string]any
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "toml",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("encoding config failed: %w", err)
	}
	return yaml.Marshal(out)
}

func mergeFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

// expandIncludes returns the files to merge in order: each file's
// includes come first, depth first, the file itself last, so the named
// file wins every key it sets. Include cycles are an error.
func expandIncludes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var (
		ordered []string
		visited = make(map[string]bool)
		walking = make(map[string]bool)
		walk    func(string) error
	)
	walk = func(file string) error {
		file = filepath.Clean(file)
		if walking[file] {
			return fmt.Errorf("include cycle detected: %s", file)
		}
		if visited[file] {
			return nil
		}
		walking[file] = true
		includes, err := readIncludeList(file)
		if err != nil {
			return fmt.Errorf("parsing include failed (%s): %w", file, err)
		}
		dir := filepath.Dir(file)
		for _, inc := range includes {
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(dir, inc)
			}
			if err := walk(inc); err != nil {
				return err
			}
		}
		delete(walking, file)
		visited[file] = true
		ordered = append(ordered, file)
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return ordered, nil
}

func readIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("include must be a list of file paths")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include entries must be strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// markSetKeys records every dotted leaf path present in the merged
// settings so defaulting can tell "explicitly zero" from "unset".
func markSetKeys(prefix string, node any, dest keySet) {
	m, ok := node.(map[string]any)
	if !ok {
		dest.mark(prefix)
		return
	}
	for k, v := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		markSetKeys(key, v, dest)
	}
}
