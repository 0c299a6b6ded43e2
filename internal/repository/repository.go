// Package repository holds the authoritative in-memory dataset: patients,
// medications, their dose history and temperature readings. It enforces
// referential integrity on writes and hands out deep copies on reads.
package repository

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medtracker/internal/platform/logging"
	"medtracker/pkg/domain"
)

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the clock used to default record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.nowFn = now
		}
	}
}

// WithIDGenerator overrides the id source. Generated ids that collide with a
// live or retired id are discarded and regenerated.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithLogger sets the logger used for debug tracing of mutations.
func WithLogger(l logging.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

// Repository is safe for concurrent use.
type Repository struct {
	mu      sync.RWMutex
	state   domain.Document
	retired map[string]struct{}
	nowFn   func() time.Time
	newID   func() string
	log     logging.Logger
}

// New returns an empty repository.
func New(opts ...Option) *Repository {
	r := &Repository{
		state:   domain.NewDocument(),
		retired: make(map[string]struct{}),
		nowFn:   func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		log:     logging.Noop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the dataset with a copy of doc. The document's retired ids
// are merged with those already known, so an id deleted in an earlier run or
// earlier in this process is never reused.
func (r *Repository) Load(doc domain.Document) error {
	norm, err := doc.Normalize()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = norm.Clone()
	for _, id := range norm.RetiredIDs {
		r.retired[id] = struct{}{}
	}
	return nil
}

// Export returns a deep copy of the full dataset for persistence, including
// every retired id.
func (r *Repository) Export() domain.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc := r.state.Clone()
	doc.RetiredIDs = nil
	if len(r.retired) > 0 {
		doc.RetiredIDs = make([]string, 0, len(r.retired))
		for id := range r.retired {
			doc.RetiredIDs = append(doc.RetiredIDs, id)
		}
		slices.Sort(doc.RetiredIDs)
	}
	return doc
}

// Empty reports whether no patients are stored.
func (r *Repository) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state.Patients) == 0
}

func (r *Repository) now() string {
	return domain.FormatTimestamp(r.nowFn())
}

// allocID keeps a supplied id when it has never been used, otherwise it
// generates a fresh one. Callers hold the write lock.
func (r *Repository) allocID(supplied string) string {
	id := strings.TrimSpace(supplied)
	for id == "" || r.taken(id) {
		id = r.newID()
	}
	return id
}

func (r *Repository) taken(id string) bool {
	if _, ok := r.retired[id]; ok {
		return true
	}
	if _, ok := r.state.Patients[id]; ok {
		return true
	}
	_, ok := r.state.Medications[id]
	return ok
}

func (r *Repository) retire(id string) {
	r.retired[id] = struct{}{}
}
