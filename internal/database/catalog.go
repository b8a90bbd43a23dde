package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/examprep/backend/internal/models"
	"github.com/examprep/backend/internal/scoring"
	"github.com/examprep/backend/internal/store"
)

// Catalog is the YAML document read by the import-tests command.
type Catalog struct {
	Tests []models.TestDefinition `yaml:"tests"`
}

// ParseCatalog decodes and validates a catalog. TotalQuestions defaults to
// the number of listed questions when omitted.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Tests))
	for i := range c.Tests {
		t := &c.Tests[i]
		if t.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: missing id", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if t.TotalQuestions == 0 {
			t.TotalQuestions = len(t.Questions)
		}
		if t.TargetTier != nil && !models.ValidTiers[*t.TargetTier] {
			return nil, fmt.Errorf("test %s: unknown target tier %q", t.ID, *t.TargetTier)
		}
		if err := scoring.ValidateDefinition(t); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// ImportCatalog upserts every test of the catalog in one transaction.
func ImportCatalog(ctx context.Context, s store.Store, c *Catalog) error {
	err := s.InTx(ctx, func(tx store.Tx) error {
		for i := range c.Tests {
			if err := tx.UpsertTestDefinition(ctx, &c.Tests[i]); err != nil {
				return fmt.Errorf("upsert %s: %w", c.Tests[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("imported test catalog", "component", "database", "tests", len(c.Tests))
	return nil
}
