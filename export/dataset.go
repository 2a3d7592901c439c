// Package export serializes a finalized snapshot into the canonical dataset,
// a generated constants module for the document runtime, and a per-formula
// manifest. All writes are atomic and every artifact is stamped with the
// snapshot's content hash so consumers can detect staleness.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/paramspec/registry"
	"github.com/c360studio/paramspec/snapshot"
)

// Artifact file names within the export directory.
const (
	DatasetJSONFile = "dataset.json"
	DatasetYAMLFile = "dataset.yaml"
	ConstantsFile   = "parameters.gen.js"
	ManifestFile    = "manifest.json"
)

// DatasetEntry is one parameter in the canonical dataset.
type DatasetEntry struct {
	Value       float64         `json:"value" yaml:"value"`
	Uncertainty *float64        `json:"uncertainty" yaml:"uncertainty"`
	Unit        string          `json:"unit" yaml:"unit"`
	Status      registry.Status `json:"status" yaml:"status"`
	Formula     string          `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// Dataset is the canonical dataset payload: category -> parameter id -> entry.
type Dataset struct {
	ContentHash string                             `json:"content_hash" yaml:"content_hash"`
	Categories  map[string]map[string]DatasetEntry `json:"categories" yaml:"categories"`
}

// Exporter writes all artifacts for one snapshot.
type Exporter struct {
	reg    *registry.Registry
	snap   *snapshot.Snapshot
	logger *slog.Logger
}

// New creates an exporter for a finalized snapshot. The registry supplies
// formula declarations for the manifest.
func New(reg *registry.Registry, snap *snapshot.Snapshot, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{reg: reg, snap: snap, logger: logger}
}

// Export writes the canonical dataset (JSON and YAML), the constants module,
// and the formula manifest into dir, then verifies the constants module
// against the snapshot. Exporting an unchanged snapshot twice yields
// byte-identical artifacts.
func (e *Exporter) Export(dir string) error {
	ds := e.buildDataset()

	jsonData, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	jsonData = append(jsonData, '\n')
	if err := writeFileAtomic(filepath.Join(dir, DatasetJSONFile), jsonData); err != nil {
		return err
	}

	yamlData, err := yaml.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dataset yaml: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, DatasetYAMLFile), yamlData); err != nil {
		return err
	}

	constants := e.renderConstants()
	constantsPath := filepath.Join(dir, ConstantsFile)
	if err := writeFileAtomic(constantsPath, constants); err != nil {
		return err
	}

	manifest, err := e.buildManifest()
	if err != nil {
		return err
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestData = append(manifestData, '\n')
	if err := writeFileAtomic(filepath.Join(dir, ManifestFile), manifestData); err != nil {
		return err
	}

	if err := VerifyConstants(constantsPath, e.snap); err != nil {
		return err
	}

	e.logger.Info("exported snapshot artifacts",
		slog.String("dir", dir),
		slog.String("content_hash", e.snap.ContentHash),
		slog.Int("parameters", len(e.snap.Entries)))
	return nil
}

func (e *Exporter) buildDataset() *Dataset {
	ds := &Dataset{
		ContentHash: e.snap.ContentHash,
		Categories:  make(map[string]map[string]DatasetEntry),
	}
	for _, id := range e.snap.IDs() {
		entry, _ := e.snap.Get(id)
		cat := ds.Categories[entry.Category]
		if cat == nil {
			cat = make(map[string]DatasetEntry)
			ds.Categories[entry.Category] = cat
		}
		cat[id] = DatasetEntry{
			Value:       entry.Value,
			Uncertainty: entry.Uncertainty,
			Unit:        entry.Unit,
			Status:      entry.Status,
			Formula:     entry.Formula,
		}
	}
	return ds
}
