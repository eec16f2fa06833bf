package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mgomes/hyperfixi/fixi"
	"github.com/mgomes/hyperfixi/htmldoc"
)

// manifest binds programs to the elements matched by a selector.
type manifest struct {
	path     string
	Bindings []binding `yaml:"bindings"`
}

type binding struct {
	Selector string    `yaml:"selector"`
	Features yaml.Node `yaml:"features"`

	program *fixi.Program
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := &manifest{path: path}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Bindings) == 0 {
		return nil, fmt.Errorf("manifest %s: no bindings", path)
	}
	for i := range m.Bindings {
		b := &m.Bindings[i]
		if b.Selector == "" {
			return nil, fmt.Errorf("%s: binding %d: selector required", path, i+1)
		}
		if b.Features.Kind == 0 {
			return nil, fmt.Errorf("%s: binding %s: features required", path, b.Selector)
		}
		prog, err := fixi.ProgramFromNode(&b.Features)
		if err != nil {
			return nil, fmt.Errorf("%s: binding %s: %w", path, b.Selector, err)
		}
		b.program = prog
	}
	return m, nil
}

func (m *manifest) install(ctx context.Context, rt *fixi.Runtime, doc *htmldoc.Document, logger zerolog.Logger) error {
	for _, b := range m.Bindings {
		targets, err := doc.QueryAll(b.Selector)
		if err != nil {
			return fmt.Errorf("binding %s: %w", b.Selector, err)
		}
		if len(targets) == 0 {
			logger.Warn().Str("selector", b.Selector).Msg("binding matched no elements")
			continue
		}
		for _, el := range targets {
			if err := rt.Install(ctx, el, b.program); err != nil {
				return fmt.Errorf("binding %s on %v: %w", b.Selector, el, err)
			}
		}
		logger.Debug().Str("selector", b.Selector).Int("elements", len(targets)).Msg("installed")
	}
	return nil
}
