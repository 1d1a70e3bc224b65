package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The codec produces a stable byte representation: struct field order is
// fixed, catalog entries are emitted sorted by key, and float64 values use
// encoding/json's shortest round-trip formatting. Serialize-then-deserialize
// therefore reproduces byte-identical profiles, which the on-disk catalog
// store relies on.

// MarshalProfile encodes one profile to its canonical JSON form.
func MarshalProfile(p *GoldenProfile) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", p.ProfileKey, err)
	}
	// Encoder appends a trailing newline; strip it for a stable blob.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalProfile decodes a canonical JSON blob and validates the result.
func UnmarshalProfile(data []byte) (*GoldenProfile, error) {
	var p GoldenProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p.restorePhases()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// catalogDocument is the serialized form of a whole catalog: synthesis
// config plus entries sorted by key.
type catalogDocument struct {
	Synthesis SynthesisConfig  `json:"synthesis"`
	Profiles  []*GoldenProfile `json:"profiles"`
}

// MarshalCatalog encodes the catalog (config and all profiles, key-sorted)
// to canonical JSON.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	doc := catalogDocument{Synthesis: c.synth}
	for _, key := range c.Keys() {
		doc.Profiles = append(doc.Profiles, c.Get(key.Strain, key.Style))
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalCatalog decodes a serialized catalog, validating every profile.
func UnmarshalCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c, err := NewCatalog(doc.Synthesis)
	if err != nil {
		return nil, err
	}
	for _, p := range doc.Profiles {
		p.restorePhases()
		if err := c.Put(p); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ProfileKey, err)
		}
	}
	return c, nil
}
