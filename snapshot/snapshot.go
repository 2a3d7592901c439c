// Package snapshot freezes one fully-evaluated build of the parameter
// registry into an immutable, content-hashed artifact. Exporters and scanners
// only ever read a Snapshot, never a live registry.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/paramspec/propagate"
	"github.com/c360studio/paramspec/registry"
)

// Entry is the frozen state of one parameter.
type Entry struct {
	Value float64 `json:"value"`

	// Uncertainty is nil when unknown or under-specified, which is distinct
	// from zero. Consumers must not treat nil as exact.
	Uncertainty *float64 `json:"uncertainty"`

	Status   registry.Status `json:"status"`
	Unit     string          `json:"unit"`
	Category string          `json:"category"`

	// Formula is the formula id for derived parameters, empty otherwise.
	Formula string `json:"formula,omitempty"`

	// Labels and Tolerance drive literal recognition in the content scanner.
	Labels    []string `json:"labels,omitempty"`
	Tolerance float64  `json:"tolerance,omitempty"`
}

// Snapshot is an immutable frozen registry state for one build.
type Snapshot struct {
	// BuildID is unique per build and excluded from the content hash.
	BuildID string `json:"build_id"`

	// ContentHash is the sha256 over the canonical entry payload. Two builds
	// of identical data share a hash regardless of build time.
	ContentHash string `json:"content_hash"`

	BuiltAt time.Time `json:"built_at"`

	Entries map[string]Entry `json:"entries"`
}

// Build freezes an evaluated registry. prop may be nil when no propagation
// was run; derived parameters then carry a nil uncertainty.
func Build(reg *registry.Registry, prop *propagate.Result) (*Snapshot, error) {
	entries := make(map[string]Entry, reg.Len())
	for _, id := range reg.SortedIDs() {
		p, _ := reg.Get(id)
		if p.Derived() && p.State != registry.EvalValid {
			return nil, fmt.Errorf("cannot snapshot: parameter %q is %s", id, p.State)
		}

		e := Entry{
			Value:     p.Value,
			Status:    p.Status,
			Unit:      p.Unit,
			Category:  p.Category,
			Formula:   p.Formula,
			Labels:    append([]string(nil), p.Labels...),
			Tolerance: p.Tolerance,
		}
		e.Uncertainty = uncertaintyOf(p, prop)
		entries[id] = e
	}

	s := &Snapshot{
		BuildID: uuid.New().String(),
		BuiltAt: time.Now().UTC(),
		Entries: entries,
	}
	hash, err := hashEntries(entries)
	if err != nil {
		return nil, err
	}
	s.ContentHash = hash
	return s, nil
}

// uncertaintyOf picks the exported uncertainty: declared sigma for base
// parameters, propagated std for derived ones, nil when the propagation
// marked the parameter under-specified.
func uncertaintyOf(p *registry.Parameter, prop *propagate.Result) *float64 {
	if prop != nil && prop.Underspecified[p.ID] {
		return nil
	}
	if !p.Derived() {
		if p.Uncertainty == nil {
			return nil
		}
		v := p.Uncertainty.Sigma
		return &v
	}
	if prop == nil {
		return nil
	}
	st, ok := prop.Stats[p.ID]
	if !ok {
		return nil
	}
	v := st.Std
	return &v
}

// hashEntries computes the canonical content hash. encoding/json writes map
// keys in sorted order, so the payload is deterministic.
func hashEntries(entries map[string]Entry) (string, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the entry for a parameter id.
func (s *Snapshot) Get(id string) (Entry, bool) {
	e, ok := s.Entries[id]
	return e, ok
}

// IDs returns all parameter ids in lexical order.
func (s *Snapshot) IDs() []string {
	out := make([]string, 0, len(s.Entries))
	for id := range s.Entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Categories returns the distinct categories in lexical order.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]bool)
	for _, e := range s.Entries {
		seen[e.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Save writes the snapshot to disk as indented JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from disk and verifies its content hash.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	hash, err := hashEntries(s.Entries)
	if err != nil {
		return nil, err
	}
	if hash != s.ContentHash {
		return nil, fmt.Errorf("snapshot %s is corrupt: stored hash %s, computed %s", path, s.ContentHash, hash)
	}
	return &s, nil
}
