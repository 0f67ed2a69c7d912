package standards

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// packSchema is the structural contract a pack manifest must satisfy before
// it is admitted to the catalog. Validating on load, rather than trusting
// ad hoc unmarshaling, is what lets the rest of the engine assume a pack's
// shape is already sound.
const packSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["pack_id", "industry", "rules"],
  "properties": {
    "pack_id": {"type": "string", "minLength": 1},
    "industry": {"type": "string", "minLength": 1},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["rule_id", "trigger", "actions"],
        "properties": {
          "rule_id": {"type": "string", "minLength": 1},
          "trigger": {"type": "object"},
          "actions": {"type": "array", "minItems": 1}
        }
      }
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaOnce sync.Once
	compiledSchemaErr  error
)

func schema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://mfgplan.local/schemas/standards-pack.schema.json"
		if err := c.AddResource(url, strings.NewReader(packSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("standards: add schema resource: %w", err)
			return
		}
		compiled, err := c.Compile(url)
		if err != nil {
			compiledSchemaErr = fmt.Errorf("standards: compile schema: %w", err)
			return
		}
		compiledSchema = compiled
	})
	return compiledSchema, compiledSchemaErr
}

// ParsePack validates and decodes a single pack manifest.
func ParsePack(data []byte) (*Pack, error) {
	s, err := schema()
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("standards: invalid JSON: %w", err)
	}
	if err := s.Validate(generic); err != nil {
		return nil, fmt.Errorf("standards: schema validation failed: %w", err)
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("standards: decode pack: %w", err)
	}
	return &pack, nil
}

// Catalog is a read-only, in-memory set of published packs, keyed by
// pack_id. It is the explicit dependency every core entry point takes
// instead of reaching for a process-wide singleton (spec §9).
type Catalog struct {
	mu    sync.RWMutex
	packs map[string]*Pack
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{packs: make(map[string]*Pack)}
}

// Register adds or replaces a pack. Packs are immutable once published by
// convention of the caller; the catalog itself does not enforce that,
// mirroring spec §3's framing of publication as an external-loader concern.
func (c *Catalog) Register(p *Pack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packs[p.PackID] = p
}

// Get returns the pack for id, or (nil, false) if unpublished.
func (c *Catalog) Get(id string) (*Pack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.packs[id]
	return p, ok
}

// IDs returns all published pack ids, sorted ascending.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.packs))
	for id := range c.packs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir reads every *.json file in dir as a pack manifest and registers it.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("standards: read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("standards: read %s: %w", entry.Name(), err)
		}
		pack, err := ParsePack(data)
		if err != nil {
			return fmt.Errorf("standards: load %s: %w", entry.Name(), err)
		}
		c.Register(pack)
	}
	return nil
}
