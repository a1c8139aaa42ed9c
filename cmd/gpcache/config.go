package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadBindings reads a YAML file into a flat binding map. Nested mappings are
// joined with dots, so
//
//	config:
//	  effect:
//	    gpcache:
//	      variance_threshold: 0.5
//
// and a top-level "config.effect.gpcache.variance_threshold: 0.5" bind the
// same key.
func loadBindings(path string) (map[string]any, error) {
	bindings := map[string]any{}
	if path == "" {
		return bindings, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	flatten("", doc, bindings)
	return bindings, nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[strings.TrimSpace(key)] = v
	}
}
