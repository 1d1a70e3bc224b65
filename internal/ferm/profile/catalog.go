package profile

import (
	"sort"
	"sync"
)

// Catalog is an explicitly constructed, injected store of golden profiles.
// It is read-mostly: concurrent reads take the shared lock, and first-time
// synthesis for an unseen key is serialized per key so two callers racing on
// the same (strain, style) never produce divergent defaults. Build one
// catalog at startup and pass it by reference to every consumer; tests build
// their own isolated catalogs.
type Catalog struct {
	mu       sync.RWMutex
	profiles map[Key]*GoldenProfile
	synth    SynthesisConfig

	creatingMu sync.Mutex
	creating   map[Key]*sync.Mutex
}

// NewCatalog creates an empty catalog that synthesizes defaults with the
// given config.
func NewCatalog(cfg SynthesisConfig) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Catalog{
		profiles: make(map[Key]*GoldenProfile),
		synth:    cfg,
		creating: make(map[Key]*sync.Mutex),
	}, nil
}

// SeedDefaults populates the stock strain/style combinations every
// deployment starts with.
func (c *Catalog) SeedDefaults() error {
	for _, key := range []Key{
		{Strain: "default_strain", Style: "default_style"},
		{Strain: "ale_strain", Style: "ipa"},
		{Strain: "lager_strain", Style: "pilsner"},
	} {
		if _, err := c.GetOrCreate(key.Strain, key.Style); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the profile for the key, or nil when absent. It never
// synthesizes.
func (c *Catalog) Get(strain, style string) *GoldenProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles[Key{Strain: strain, Style: style}]
}

// GetOrCreate returns the profile for (strain, style), synthesizing a
// deterministic default when the key is unseen. Identical key and synthesis
// config always yield an identical profile.
func (c *Catalog) GetOrCreate(strain, style string) (*GoldenProfile, error) {
	key := Key{Strain: strain, Style: style}

	c.mu.RLock()
	p := c.profiles[key]
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	// Serialize first-time synthesis per key. Other keys create in parallel.
	keyMu := c.keyLock(key)
	keyMu.Lock()
	defer keyMu.Unlock()

	c.mu.RLock()
	p = c.profiles[key]
	c.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	p, err := Synthesize(key, c.synth)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.profiles[key] = p
	c.mu.Unlock()
	return p, nil
}

// Put registers a curated profile. Revising an existing key replaces the
// catalog entry with the new profile; the old profile value is never
// mutated in place.
func (c *Catalog) Put(p *GoldenProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.profiles[p.ProfileKey] = p
	c.mu.Unlock()
	return nil
}

// Keys returns the catalog's keys sorted by strain then style.
func (c *Catalog) Keys() []Key {
	c.mu.RLock()
	out := make([]Key, 0, len(c.profiles))
	for k := range c.profiles {
		out = append(out, k)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strain != out[j].Strain {
			return out[i].Strain < out[j].Strain
		}
		return out[i].Style < out[j].Style
	})
	return out
}

// Len returns the number of profiles held.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}

func (c *Catalog) keyLock(key Key) *sync.Mutex {
	c.creatingMu.Lock()
	defer c.creatingMu.Unlock()
	mu, ok := c.creating[key]
	if !ok {
		mu = &sync.Mutex{}
		c.creating[key] = mu
	}
	return mu
}
