// Package config loads build profiles from a project build file and parses
// command line overrides into overlays.
//
// A build file looks like:
//
//	base:
//	  outputPath: dist
//	  publicPath: /
//	  sourceMap: false
//	environments:
//	  production:
//	    sourceMap: true
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/wolfeidau/prodbuild/internal/profile"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the build file name used when none is given.
const DefaultFile = "build.yaml"

var (
	// ErrUnknownEnvironment indicates the requested environment has no overlay
	ErrUnknownEnvironment = errors.New("unknown environment")
	// ErrInvalidSet indicates a malformed key=value override
	ErrInvalidSet = errors.New("invalid override")
)

// Project is the decoded build file.
type Project struct {
	Base         profile.Profile            `yaml:"base"`
	Environments map[string]profile.Profile `yaml:"environments"`
}

// LoadFile reads and decodes a build file.
func LoadFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build file: %w", err)
	}
	return Parse(data)
}

// Parse decodes build file content.
func Parse(data []byte) (*Project, error) {
	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse build file: %w", err)
	}
	if project.Base == nil {
		project.Base = profile.Profile{}
	}
	return &project, nil
}

// Overlay returns the overlay for env. An empty env selects no overlay.
func (p *Project) Overlay(env string) (profile.Profile, error) {
	if env == "" {
		return profile.Profile{}, nil
	}
	overlay, ok := p.Environments[env]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownEnvironment, env, strings.Join(p.EnvironmentNames(), ", "))
	}
	return overlay.Clone(), nil
}

// EnvironmentNames returns the declared environments in sorted order.
func (p *Project) EnvironmentNames() []string {
	names := make([]string, 0, len(p.Environments))
	for name := range p.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSet builds an overlay from dotted key=value pairs such as
// "html.minify.removeComments=false". Values are decoded as YAML so "true"
// becomes a bool and "30000" a number. Later pairs win over earlier ones.
func ParseSet(pairs []string) (profile.Profile, error) {
	overlay := profile.Profile{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q must be key=value", ErrInvalidSet, pair)
		}

		parts := strings.Split(key, ".")
		for _, part := range parts {
			if part == "" {
				return nil, fmt.Errorf("%w: %q has an empty key segment", ErrInvalidSet, pair)
			}
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSet, pair, err)
		}

		if err := setPath(overlay, parts, value); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSet, pair, err)
		}
	}
	return overlay, nil
}

func setPath(m map[string]any, parts []string, value any) error {
	for i, part := range parts[:len(parts)-1] {
		next, ok := m[part]
		if !ok {
			child := map[string]any{}
			m[part] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a mapping", strings.Join(parts[:i+1], "."))
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
	return nil
}
