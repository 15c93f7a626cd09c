// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v6"

	iu "github.com/choria-io/execstep/internal/util"
	"github.com/choria-io/execstep/metrics"
	"github.com/choria-io/execstep/model"
)

const manifestSchemaURL = "https://choria.io/schemas/execstep/v1/manifest.json"

//go:embed manifest_schema.json
var manifestSchemaJSON []byte

var manifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchemaJSON))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	err = c.AddResource(manifestSchemaURL, doc)
	if err != nil {
		return nil, err
	}

	return c.Compile(manifestSchemaURL)
})

// UserDefaultsFile is the per user file holding step defaults applied beneath every manifest
func UserDefaultsFile() string {
	if xdg.ConfigHome == "" {
		return ""
	}

	return filepath.Join(xdg.ConfigHome, "choria", "execstep", "defaults.yaml")
}

// StepReport is the outcome of one step of a manifest
type StepReport struct {
	Name    string              `json:"name" yaml:"name"`
	Skipped bool                `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Result  *model.LaunchResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error   string              `json:"error,omitempty" yaml:"error,omitempty"`
}

type manifest struct {
	Defaults map[string]any   `yaml:"defaults"`
	Steps    []map[string]any `yaml:"steps"`
}

// validateDocument checks a YAML document against the manifest schema, wrap can alter the decoded document before validation
func validateDocument(data []byte, wrap func(any) any) error {
	schema, err := manifestSchema()
	if err != nil {
		return fmt.Errorf("could not compile manifest schema: %w", err)
	}

	jdat, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidManifest, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(jdat))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidManifest, err)
	}

	if wrap != nil {
		doc = wrap(doc)
	}

	err = schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidManifest, err)
	}

	return nil
}

func (m *Manager) userDefaults() (map[string]any, error) {
	if m.defaultsFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(m.defaultsFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	err = validateDocument(data, func(doc any) any {
		return map[string]any{"defaults": doc, "steps": []any{}}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.defaultsFile, err)
	}

	var defaults map[string]any
	err = yaml.Unmarshal(data, &defaults)
	if err != nil {
		return nil, err
	}

	m.log.Debug("Loaded user defaults", "file", m.defaultsFile)

	return defaults, nil
}

// ParseManifest validates a YAML manifest and returns its steps with all defaults applied
func (m *Manager) ParseManifest(data []byte) ([]*model.ExecProperties, error) {
	err := validateDocument(data, nil)
	if err != nil {
		return nil, err
	}

	var mf manifest
	err = yaml.Unmarshal(data, &mf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidManifest, err)
	}

	userDefaults, err := m.userDefaults()
	if err != nil {
		return nil, err
	}

	defaults := iu.DeepMergeMap(userDefaults, mf.Defaults)

	var steps []*model.ExecProperties
	for i, step := range mf.Steps {
		merged := iu.ShallowMerge(defaults, step)
		if name, _ := step["name"].(string); name == "" {
			merged["name"] = fmt.Sprintf("step-%d", i+1)
		}

		raw, err := yaml.Marshal(merged)
		if err != nil {
			return nil, err
		}

		props, err := model.NewExecPropertiesFromYaml(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", model.ErrInvalidManifest, i+1, err)
		}

		steps = append(steps, props)
	}

	return steps, nil
}

// ApplyManifestReader reads a manifest and runs its steps in order, stopping on the first failed step
func (m *Manager) ApplyManifestReader(ctx context.Context, r io.Reader, source string) ([]StepReport, error) {
	timer := prometheus.NewTimer(metrics.ManifestApplyTime.WithLabelValues(source))
	defer timer.ObserveDuration()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	steps, err := m.ParseManifest(data)
	if err != nil {
		return nil, err
	}

	log := m.log.With("manifest", source)
	log.Info("Applying manifest", "steps", len(steps))

	var reports []StepReport
	for _, step := range steps {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}

		res, err := m.Execute(ctx, step)
		report := StepReport{Name: step.Name, Result: res, Skipped: res == nil && err == nil}
		if err != nil {
			report.Error = err.Error()
		}
		reports = append(reports, report)

		if err != nil {
			log.Error("Step failed", "step", step.Name, "error", err)
			return reports, err
		}
	}

	return reports, nil
}
