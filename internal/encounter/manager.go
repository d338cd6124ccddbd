package encounter

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/medscribe/internal/observe"
)

// Sentinel errors returned by [Manager] and [Encounter].
var (
	// ErrNotFound is returned when no active encounter has the given id.
	ErrNotFound = errors.New("encounter: not found")

	// ErrLimitReached is returned when starting an encounter would exceed
	// the configured maximum of active encounters.
	ErrLimitReached = errors.New("encounter: active encounter limit reached")

	// ErrClosed is returned when an ended encounter or a closed manager is
	// used for processing.
	ErrClosed = errors.New("encounter: closed")

	// ErrExists is returned when starting an encounter with an id in use.
	ErrExists = errors.New("encounter: already exists")
)

// Info describes an active encounter.
type Info struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Segments  int       `json:"segments"`
	Entities  int       `json:"entities"`
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithMaxActive limits the number of concurrently active encounters. Zero or
// a negative value means no limit.
func WithMaxActive(n int) ManagerOption {
	return func(m *Manager) { m.maxActive = n }
}

// WithClock replaces the wall clock used to stamp encounter starts.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager tracks the active encounters of a process. Encounters share
// nothing but the read-only [Pipeline]. All methods are safe for concurrent
// use.
type Manager struct {
	mu         sync.Mutex
	pipeline   *Pipeline
	encounters map[string]*Encounter
	maxActive  int
	closed     bool
	now        func() time.Time
}

// NewManager returns a [Manager] creating encounters with p.
func NewManager(p *Pipeline, opts ...ManagerOption) *Manager {
	if p == nil {
		p = NewPipeline()
	}
	m := &Manager{
		pipeline:   p,
		encounters: make(map[string]*Encounter),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetPipeline replaces the pipeline used for encounters started from now on.
// Running encounters keep the pipeline they started with.
func (m *Manager) SetPipeline(p *Pipeline) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipeline = p
}

// Pipeline returns the pipeline new encounters start with.
func (m *Manager) Pipeline() *Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pipeline
}

// SetMaxActive changes the active encounter limit. Encounters above a
// lowered limit are not ended.
func (m *Manager) SetMaxActive(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxActive = n
}

// Start begins a new encounter with a random id.
func (m *Manager) Start(ctx context.Context) (*Encounter, error) {
	return m.StartWithID(ctx, uuid.NewString())
}

// StartWithID begins a new encounter with the given id.
func (m *Manager) StartWithID(ctx context.Context, id string) (*Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, id)
}

// GetOrStart returns the encounter with the given id, starting it when it
// does not exist. started reports whether a new encounter was created.
func (m *Manager) GetOrStart(ctx context.Context, id string) (e *Encounter, started bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.encounters[id]; ok {
		return e, false, nil
	}
	e, err = m.startLocked(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (m *Manager) startLocked(ctx context.Context, id string) (*Encounter, error) {
	if m.closed {
		return nil, fmt.Errorf("encounter: start: %w", ErrClosed)
	}
	if id == "" {
		return nil, errors.New("encounter: start: id must not be empty")
	}
	if _, ok := m.encounters[id]; ok {
		return nil, fmt.Errorf("encounter: start %s: %w", id, ErrExists)
	}
	if m.maxActive > 0 && len(m.encounters) >= m.maxActive {
		return nil, fmt.Errorf("encounter: start %s: %w (max %d)", id, ErrLimitReached, m.maxActive)
	}

	e := New(id, m.pipeline, m.now())
	m.encounters[id] = e
	m.pipeline.metrics.ActiveEncounters.Add(ctx, 1)
	observe.Logger(ctx).Info("encounter started", slog.String("encounter_id", id))
	return e, nil
}

// Get returns the active encounter with the given id.
func (m *Manager) Get(id string) (*Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.encounters[id]
	if !ok {
		return nil, fmt.Errorf("encounter: get %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// End closes the encounter and drops it from the manager. Callers still
// holding the encounter can read its final state.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.encounters[id]
	if ok {
		delete(m.encounters, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("encounter: end %s: %w", id, ErrNotFound)
	}

	e.close()
	e.p.metrics.ActiveEncounters.Add(ctx, -1)
	segs, ents := e.Stats()
	observe.Logger(ctx).Info("encounter ended",
		slog.String("encounter_id", id),
		slog.Int("segments", segs),
		slog.Int("entities", ents),
	)
	return nil
}

// List returns the active encounters ordered by start time, then id.
func (m *Manager) List() []Info {
	m.mu.Lock()
	es := make([]*Encounter, 0, len(m.encounters))
	for _, e := range m.encounters {
		es = append(es, e)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(es))
	for _, e := range es {
		segs, ents := e.Stats()
		infos = append(infos, Info{ID: e.id, StartedAt: e.started, Segments: segs, Entities: ents})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

// Len returns the number of active encounters.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.encounters)
}

// Close ends every encounter and rejects new ones.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.encounters))
	for id := range m.encounters {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		_ = m.End(ctx, id)
	}
}
