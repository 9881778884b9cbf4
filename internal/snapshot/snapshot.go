// Package snapshot holds the immutable view of appointments, clients and
// therapists the schedule projections are derived from.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/metrics"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

// Snapshot must not be mutated once installed.
type Snapshot struct {
	Generation   uint64
	LoadedAt     time.Time
	Appointments []appointment.Appointment
	Clients      []client.Client
	Therapists   []therapist.Therapist
}

// Therapist finds a therapist by id.
func (s *Snapshot) Therapist(id uuid.UUID) (therapist.Therapist, bool) {
	for _, t := range s.Therapists {
		if t.ID == id {
			return t, true
		}
	}
	return therapist.Therapist{}, false
}

// ActiveTherapists keeps the therapists flagged active.
func (s *Snapshot) ActiveTherapists() []therapist.Therapist {
	out := make([]therapist.Therapist, 0, len(s.Therapists))
	for _, t := range s.Therapists {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out
}

type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

type AppointmentLister interface {
	List(ctx context.Context) ([]appointment.Appointment, error)
}

type ClientLister interface {
	List(ctx context.Context) ([]client.Client, error)
}

type TherapistLister interface {
	List(ctx context.Context) ([]therapist.Therapist, error)
}

type LoaderFunc func(ctx context.Context) (Snapshot, error)

func (f LoaderFunc) Load(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// RepoLoader reads the three tables through their repositories.
type RepoLoader struct {
	Appointments AppointmentLister
	Clients      ClientLister
	Therapists   TherapistLister
}

func (l RepoLoader) Load(ctx context.Context) (Snapshot, error) {
	appts, err := l.Appointments.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load appointments: %w", err)
	}
	clients, err := l.Clients.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load clients: %w", err)
	}
	therapists, err := l.Therapists.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load therapists: %w", err)
	}
	return Snapshot{Appointments: appts, Clients: clients, Therapists: therapists}, nil
}

// Store hands out the latest snapshot. Every reload is tagged with a
// generation token and a load that finishes after a newer one is discarded.
type Store struct {
	loader  Loader
	ttl     time.Duration
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time

	issued atomic.Uint64

	mu          sync.Mutex
	current     *Snapshot
	invalidated uint64 // snapshots at or below this generation are stale
}

func NewStore(loader Loader, ttl time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{
		loader:  loader,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Reload loads a fresh snapshot. When a newer generation was installed while
// this load was in flight, the newer snapshot is returned instead.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	gen := s.issued.Add(1)

	snap, err := s.loader.Load(ctx)
	if err != nil {
		s.metrics.ObserveSnapshotReload("error")
		s.logger.Error("snapshot reload failed", "generation", gen, "error", err)
		return nil, err
	}
	snap.Generation = gen
	snap.LoadedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Generation > gen {
		s.metrics.ObserveSnapshotReload("discarded")
		s.logger.Debug("discarding stale snapshot", "generation", gen, "current", s.current.Generation)
		return s.current, nil
	}
	s.current = &snap
	s.metrics.ObserveSnapshotReload("ok")
	return s.current, nil
}

// Get returns the current snapshot, reloading it when it is older than the
// TTL or was invalidated.
func (s *Store) Get(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	cur := s.current
	fresh := cur != nil && cur.Generation > s.invalidated && s.now().Sub(cur.LoadedAt) < s.ttl
	s.mu.Unlock()

	if fresh {
		return cur, nil
	}
	return s.Reload(ctx)
}

// Invalidate marks every snapshot issued so far as stale.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.invalidated = s.issued.Load()
	s.mu.Unlock()
}

// Generation is the generation of the installed snapshot, zero before the
// first load.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.Generation
}
