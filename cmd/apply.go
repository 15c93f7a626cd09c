// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/choria-io/execstep/manager"
	"github.com/choria-io/execstep/properties"
	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"
)

type applyCommand struct {
	manifest       string
	baseDir        string
	renderOnly     bool
	report         bool
	showProperties bool
}

func registerApplyCommand(app *fisk.Application) {
	cmd := &applyCommand{}

	apply := app.Command("apply", "Apply a manifest of steps").Action(cmd.applyAction)
	apply.Arg("manifest", "Path to manifest to apply").Required().ExistingFileVar(&cmd.manifest)
	apply.Flag("base-dir", "Directory relative paths are resolved against, defaults to the manifest directory").PlaceHolder("DIR").ExistingDirVar(&cmd.baseDir)
	apply.Flag("render", "Do not apply, only render the steps with defaults applied").UnNegatableBoolVar(&cmd.renderOnly)
	apply.Flag("report", "Generate a report").Default("true").BoolVar(&cmd.report)
	apply.Flag("properties", "Show exported properties after the run").UnNegatableBoolVar(&cmd.showProperties)
}

func (c *applyCommand) applyAction(_ *fisk.ParseContext) error {
	if c.baseDir == "" {
		c.baseDir = filepath.Dir(c.manifest)
	}

	mgr, err := newManager(c.baseDir)
	if err != nil {
		return err
	}

	if c.renderOnly {
		data, err := os.ReadFile(c.manifest)
		if err != nil {
			return err
		}

		steps, err := mgr.ParseManifest(data)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(map[string]any{"steps": steps})
		if err != nil {
			return err
		}

		fmt.Println(string(out))

		return nil
	}

	manifest, err := os.Open(c.manifest)
	if err != nil {
		return err
	}
	defer manifest.Close()

	start := time.Now()
	reports, err := mgr.ApplyManifestReader(ctx, manifest, c.manifest)

	if c.report {
		c.showReport(reports, time.Since(start))
	}

	if c.showProperties {
		if store, ok := mgr.Properties().(*properties.MemoryStore); ok {
			fmt.Println()
			perr := store.WriteYAML(os.Stdout)
			if perr != nil {
				return perr
			}
		}
	}

	return err
}

func (c *applyCommand) showReport(reports []manager.StepReport, took time.Duration) {
	var failed, skipped, killed int

	for _, r := range reports {
		switch {
		case r.Error != "":
			failed++
		case r.Skipped:
			skipped++
		case r.Result != nil && r.Result.Killed:
			killed++
		}
	}

	fmt.Println()
	fmt.Println("Manifest Run Summary")
	fmt.Println()
	fmt.Printf("        Run Time: %v\n", took.Round(time.Millisecond))
	fmt.Printf("     Total Steps: %d\n", len(reports))
	fmt.Printf("    Failed Steps: %d\n", failed)
	fmt.Printf("   Skipped Steps: %d\n", skipped)
	fmt.Printf("    Killed Steps: %d\n", killed)
}
