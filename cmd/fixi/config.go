package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mgomes/hyperfixi/fixi"
)

// fileConfig mirrors the engine limits a config file may override. Zero
// values keep the engine defaults.
type fileConfig struct {
	LoopLimit      int    `yaml:"loop_limit"`
	StepQuota      int    `yaml:"step_quota"`
	RecursionLimit int    `yaml:"recursion_limit"`
	LogLevel       string `yaml:"log_level"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.LoopLimit < 0 || cfg.RecursionLimit < 0 {
		return cfg, fmt.Errorf("config %s: limits must not be negative", path)
	}
	return cfg, nil
}

func (c fileConfig) engineConfig(logger *zerolog.Logger) fixi.Config {
	return fixi.Config{
		LoopLimit:      c.LoopLimit,
		StepQuota:      c.StepQuota,
		RecursionLimit: c.RecursionLimit,
		Logger:         logger,
	}
}
