package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile holds per-user defaults, e.g. ~/.config/model-upload.yaml:
//
//	server: https://models.example.com
//	tags: [office, hvac]
//	timeout: 10m
type Profile struct {
	Server  string        `yaml:"server"`
	Tags    []string      `yaml:"tags"`
	Timeout time.Duration `yaml:"timeout"`
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}
