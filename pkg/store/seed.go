package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is the layout of a seed file
type Fixtures struct {
	HealthMetrics   []HealthMetric   `yaml:"healthmetrics"`
	AnalysisMarkers []AnalysisMarker `yaml:"analysismarkers"`
}

// LoadFixtures parses a YAML seed file
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &fx, nil
}

// Seed writes the fixtures in path into s and returns how many documents were created.
// The first failed write stops seeding.
func Seed(ctx context.Context, s Store, path string) (int, error) {
	fx, err := LoadFixtures(path)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range fx.HealthMetrics {
		if _, err := s.Create(ctx, CollectionHealthMetrics, m); err != nil {
			return n, err
		}
		n++
	}
	for _, m := range fx.AnalysisMarkers {
		if _, err := s.Create(ctx, CollectionAnalysisMarkers, m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
