package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// settingKeys lists the dotted keys of every scalar setting in v, named by
// their mapstructure tags. Map fields are free-form and skipped.
func settingKeys(v any) []string {
	var keys []string
	var walk func(prefix string, t reflect.Type)
	walk = func(prefix string, t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := tagName(f)
			if name == "" {
				continue
			}
			key := name
			if prefix != "" {
				key = prefix + "." + name
			}
			switch f.Type.Kind() {
			case reflect.Struct:
				if f.Type != durationType {
					walk(key, f.Type)
					continue
				}
				keys = append(keys, key)
			case reflect.Map:
			default:
				keys = append(keys, key)
			}
		}
	}
	walk("", reflect.TypeOf(v))
	return keys
}

func tagName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("mapstructure")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return strings.ToLower(f.Name)
}

// WriteDefault writes DefaultConfig to path as YAML, creating parent
// directories. An existing file is left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML with the same keys Load accepts. Durations
// are written in their string form ("30s").
func Marshal(cfg *Config) ([]byte, error) {
	node, err := toNode(reflect.ValueOf(*cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	node.HeadComment = "casecoord configuration"
	return yaml.Marshal(node)
}

func toNode(v reflect.Value) (*yaml.Node, error) {
	if v.Type() == durationType {
		return &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: time.Duration(v.Int()).String(),
		}, nil
	}
	if v.Kind() != reflect.Struct {
		node := &yaml.Node{}
		if err := node.Encode(v.Interface()); err != nil {
			return nil, err
		}
		return node, nil
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i < v.NumField(); i++ {
		name := tagName(v.Type().Field(i))
		if name == "" {
			continue
		}
		value, err := toNode(v.Field(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}
