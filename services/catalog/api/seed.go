package catalogapi

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/errors"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

// SeedFile is the YAML layout accepted by Seed.
type SeedFile struct {
	Vendors  []catalog.Vendor  `yaml:"vendors"`
	Packages []catalog.Package `yaml:"packages"`
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Vendors  int `json:"vendors"`
	Packages int `json:"packages"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	vendors := make(map[string]catalog.Vendor, len(f.Vendors))
	for _, v := range f.Vendors {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if _, dup := vendors[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vendor id %s", v.ID)
		}
		vendors[v.ID] = v
	}
	seen := make(map[string]struct{}, len(f.Packages))
	for _, p := range f.Packages {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate package id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
		if !p.HasVendor() {
			continue
		}
		v, ok := vendors[p.VendorID]
		if !ok {
			continue
		}
		if v.Category != p.Category {
			return nil, fmt.Errorf("package %s: category %s does not match vendor %s (%s)", p.ID, p.Category, v.ID, v.Category)
		}
	}
	return &f, nil
}

// Seed upserts the vendors and packages of a YAML seed document.
// Vendors are written first so package foreign keys resolve.
func (s *Service) Seed(ctx context.Context, r io.Reader) (*SeedResult, error) {
	f, err := ParseSeed(r)
	if err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if err := s.store.UpsertVendors(ctx, f.Vendors); err != nil {
		return nil, commonservice.StoreError(err, "vendors", "")
	}
	if err := s.store.UpsertPackages(ctx, f.Packages); err != nil {
		return nil, commonservice.StoreError(err, "packages", "")
	}
	s.Logger().WithFields(map[string]interface{}{
		"vendors":  len(f.Vendors),
		"packages": len(f.Packages),
	}).Info("catalog seeded")
	return &SeedResult{Vendors: len(f.Vendors), Packages: len(f.Packages)}, nil
}

// SeedFromFile opens path and calls Seed.
func (s *Service) SeedFromFile(ctx context.Context, path string) (*SeedResult, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return s.Seed(ctx, fh)
}
