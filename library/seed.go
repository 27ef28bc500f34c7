package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML description of a library's startup state: the material
// type schedule plus optional initial organizations, materials and users.
type Seed struct {
	Types         []MaterialType `yaml:"types"`
	Organizations []string       `yaml:"organizations"`
	Materials     []SeedMaterial `yaml:"materials"`
	Users         []SeedUser     `yaml:"users"`
}

type SeedMaterial struct {
	ID   int    `yaml:"id"`
	Type string `yaml:"type"`
}

type SeedUser struct {
	ID           int    `yaml:"id"`
	Organization string `yaml:"organization"`
}

// ReadSeed decodes a seed document. Unknown keys are rejected.
func ReadSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return Seed{}, nil
		}
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// ReadSeedFile opens path and decodes it with ReadSeed.
func ReadSeedFile(path string) (Seed, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Seed{}, err
	}
	defer f.Close()
	s, err := ReadSeed(f)
	if err != nil {
		return Seed{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Registry builds an unsealed type registry from the seed. A seed without
// types falls back to DefaultTypeRegistry.
func (s Seed) Registry() (*TypeRegistry, error) {
	if len(s.Types) == 0 {
		return DefaultTypeRegistry(), nil
	}
	r := NewTypeRegistry()
	for _, t := range s.Types {
		if err := r.Register(t.Name, t.OverdueThresholdWeeks, t.DailyFineRate); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SeedResult records the outcome of applying one seed row.
type SeedResult struct {
	Kind string
	ID   int
	Name string
	Err  error
}

// Apply stocks, creates and enrolls everything listed in the seed. Rows fail
// independently; the returned slice has one result per row in seed order.
func (s Seed) Apply(svc *LendingService) []SeedResult {
	results := make([]SeedResult, 0, len(s.Organizations)+len(s.Materials)+len(s.Users))
	for _, name := range s.Organizations {
		results = append(results, SeedResult{Kind: "organization", Name: name, Err: svc.AddOrganization(name)})
	}
	for _, m := range s.Materials {
		results = append(results, SeedResult{Kind: "material", ID: m.ID, Name: m.Type, Err: svc.StockMaterial(m.ID, m.Type)})
	}
	for _, u := range s.Users {
		results = append(results, SeedResult{Kind: "user", ID: u.ID, Name: u.Organization, Err: svc.EnrollUser(u.ID, u.Organization)})
	}
	return results
}
