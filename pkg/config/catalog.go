package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tracepack/mfgplan/pkg/profiles"
)

// ProfileCatalog is the loaded set of standards profiles, industry
// profiles, and bundles that seed the engine at startup.
type ProfileCatalog struct {
	Profiles   map[string]*profiles.StandardsProfile
	Industries map[string]*profiles.IndustryProfile
	Bundles    map[string]*profiles.ProfileBundle
}

// LoadProfileCatalog loads every profile_*.yaml, industry_*.yaml, and
// bundle_*.yaml file from dir into a ProfileCatalog.
func LoadProfileCatalog(dir string) (*ProfileCatalog, error) {
	cat := &ProfileCatalog{
		Profiles:   make(map[string]*profiles.StandardsProfile),
		Industries: make(map[string]*profiles.IndustryProfile),
		Bundles:    make(map[string]*profiles.ProfileBundle),
	}

	if err := loadGlob(dir, "profile_*.yaml", func(data []byte) error {
		var p profiles.StandardsProfile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return err
		}
		cat.Profiles[p.ProfileID] = &p
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadGlob(dir, "industry_*.yaml", func(data []byte) error {
		var ind profiles.IndustryProfile
		if err := yaml.Unmarshal(data, &ind); err != nil {
			return err
		}
		cat.Industries[ind.IndustryID] = &ind
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadGlob(dir, "bundle_*.yaml", func(data []byte) error {
		var b profiles.ProfileBundle
		if err := yaml.Unmarshal(data, &b); err != nil {
			return err
		}
		cat.Bundles[b.BundleID] = &b
		return nil
	}); err != nil {
		return nil, err
	}

	return cat, nil
}

func loadGlob(dir, pattern string, onFile func([]byte) error) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("config: glob %s: %w", pattern, err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := onFile(data); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return nil
}

// GetProfile, GetIndustry, and GetBundle look up one catalog entry by id.
func (c *ProfileCatalog) GetProfile(id string) (*profiles.StandardsProfile, bool) {
	p, ok := c.Profiles[id]
	return p, ok
}

func (c *ProfileCatalog) GetIndustry(id string) (*profiles.IndustryProfile, bool) {
	ind, ok := c.Industries[id]
	return ind, ok
}

func (c *ProfileCatalog) GetBundle(id string) (*profiles.ProfileBundle, bool) {
	b, ok := c.Bundles[id]
	return b, ok
}

// ProfileRegistry, IndustryRegistry, and BundleRegistry adapt a
// ProfileCatalog's three named accessors to the single-method Get(id)
// shape soe.Engine's ProfileLookup/IndustryLookup/BundleLookup
// interfaces expect. Go's structural typing means this package never
// needs to import pkg/soe to satisfy them.
type ProfileRegistry struct{ *ProfileCatalog }

func (r ProfileRegistry) Get(id string) (*profiles.StandardsProfile, bool) { return r.GetProfile(id) }

type IndustryRegistry struct{ *ProfileCatalog }

func (r IndustryRegistry) Get(id string) (*profiles.IndustryProfile, bool) { return r.GetIndustry(id) }

type BundleRegistry struct{ *ProfileCatalog }

func (r BundleRegistry) Get(id string) (*profiles.ProfileBundle, bool) { return r.GetBundle(id) }
