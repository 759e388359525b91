// Package recovery holds per-session pipeline state that outlives a single
// call: the partial-output checkpoint, the last unresolved framing conflict
// and the rejected citations. Each is a single slot; writes replace, never
// merge.
package recovery

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/framewise/internal/cache"
	"github.com/ppiankov/framewise/internal/model"
)

const (
	slotCheckpoint = "checkpoint"
	slotConflict   = "conflict"
	slotCitations  = "citations"
)

// Conflict is a stored framing conflict together with what is needed to
// finish the result once a frame is chosen
type Conflict struct {
	Record    model.FramingConflictRecord `json:"record"`
	Request   model.ContentRequest        `json:"request"`
	Citations []model.Citation            `json:"citations,omitempty"`
	Model     string                      `json:"model,omitempty"`
}

// Pending is a snapshot of every slot of a session
type Pending struct {
	Checkpoint     *model.PartialContentCheckpoint `json:"checkpoint,omitempty"`
	Conflict       *Conflict                       `json:"conflict,omitempty"`
	CitationErrors []model.CitationError           `json:"citation_errors,omitempty"`
}

// Empty reports whether no slot is occupied
func (p Pending) Empty() bool {
	return p.Checkpoint == nil && p.Conflict == nil && len(p.CitationErrors) == 0
}

// Store is a session-scoped slot store. It is safe for concurrent use.
type Store struct {
	cache cache.Cache
	ttl   time.Duration

	// mu serializes read-modify-write of the citation slot
	mu sync.Mutex
}

// NewStore creates a store over any cache
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// NewMemoryStore creates a store that lives only as long as the process
func NewMemoryStore(ttl time.Duration) *Store {
	return NewStore(cache.NewMemoryCache(ttl, 10*time.Minute), ttl)
}

// NewPersistentStore creates a store that keeps slots on disk under dir
func NewPersistentStore(dir string, ttl time.Duration) *Store {
	return NewStore(cache.NewLayeredCache(ttl, dir, ttl), ttl)
}

// SaveCheckpoint replaces the session's checkpoint
func (s *Store) SaveCheckpoint(session string, cp model.PartialContentCheckpoint) error {
	return s.put(session, slotCheckpoint, cp)
}

// Checkpoint returns the session's checkpoint, if any
func (s *Store) Checkpoint(session string) (*model.PartialContentCheckpoint, bool) {
	var cp model.PartialContentCheckpoint
	if !s.get(session, slotCheckpoint, &cp) {
		return nil, false
	}
	return &cp, true
}

// ClearCheckpoint empties the checkpoint slot
func (s *Store) ClearCheckpoint(session string) error {
	return s.cache.Delete(cache.SlotKey(session, slotCheckpoint))
}

// ClearCheckpointFor empties the checkpoint slot only if it belongs to the
// given request fingerprint
func (s *Store) ClearCheckpointFor(session, fingerprint string) error {
	cp, ok := s.Checkpoint(session)
	if !ok || cp.RequestFingerprint != fingerprint {
		return nil
	}
	return s.ClearCheckpoint(session)
}

// SaveConflict replaces the session's conflict
func (s *Store) SaveConflict(session string, c Conflict) error {
	return s.put(session, slotConflict, c)
}

// Conflict returns the session's unresolved conflict, if any
func (s *Store) Conflict(session string) (*Conflict, bool) {
	var c Conflict
	if !s.get(session, slotConflict, &c) {
		return nil, false
	}
	return &c, true
}

// ClearConflict empties the conflict slot
func (s *Store) ClearConflict(session string) error {
	return s.cache.Delete(cache.SlotKey(session, slotConflict))
}

// SaveCitationErrors replaces the session's citation errors. An empty list
// clears the slot.
func (s *Store) SaveCitationErrors(session string, errs []model.CitationError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(errs) == 0 {
		return s.cache.Delete(cache.SlotKey(session, slotCitations))
	}
	return s.put(session, slotCitations, errs)
}

// CitationErrors returns the session's rejected citations
func (s *Store) CitationErrors(session string) []model.CitationError {
	var errs []model.CitationError
	s.get(session, slotCitations, &errs)
	return errs
}

// DismissCitationError removes every citation error whose citation source
// matches. It reports whether anything was removed.
func (s *Store) DismissCitationError(session, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []model.CitationError
	if !s.get(session, slotCitations, &errs) {
		return false, nil
	}

	kept := errs[:0]
	for _, e := range errs {
		if e.Citation.Source != source {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(errs) {
		return false, nil
	}

	if len(kept) == 0 {
		return true, s.cache.Delete(cache.SlotKey(session, slotCitations))
	}
	return true, s.put(session, slotCitations, kept)
}

// Snapshot returns every slot of the session
func (s *Store) Snapshot(session string) Pending {
	var p Pending
	if cp, ok := s.Checkpoint(session); ok {
		p.Checkpoint = cp
	}
	if c, ok := s.Conflict(session); ok {
		p.Conflict = c
	}
	p.CitationErrors = s.CitationErrors(session)
	return p
}

func (s *Store) put(session, slot string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", slot, err)
	}
	if err := s.cache.Set(cache.SlotKey(session, slot), data, s.ttl); err != nil {
		return fmt.Errorf("store %s: %w", slot, err)
	}
	return nil
}

// get decodes a slot; an undecodable slot reads as empty
func (s *Store) get(session, slot string, v any) bool {
	data, ok := s.cache.Get(cache.SlotKey(session, slot))
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
