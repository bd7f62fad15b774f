// Package guide serves the kiosk's static help content.
package guide

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed guide.yaml
var builtin []byte

// Step is one instruction of a section. Header may be empty.
type Step struct {
	Header string `yaml:"header" json:"header,omitempty"`
	Text   string `yaml:"text" json:"text"`
}

// Section groups the steps of one topic.
type Section struct {
	Title string `yaml:"title" json:"title"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Guide is the whole manual.
type Guide struct {
	Title    string    `yaml:"title" json:"title"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Default returns the built-in manual.
func Default() *Guide {
	g, err := parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("built-in guide is invalid: %v", err))
	}
	return g
}

// Load reads a manual from path; an empty path yields the built-in one.
func Load(path string) (*Guide, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guide file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Guide, error) {
	var g Guide
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse guide: %w", err)
	}
	if len(g.Sections) == 0 {
		return nil, errors.New("guide has no sections")
	}
	for _, s := range g.Sections {
		if len(s.Steps) == 0 {
			return nil, fmt.Errorf("guide section %q has no steps", s.Title)
		}
	}
	return &g, nil
}
