// Package store keeps the canonical in-memory folder forest in step with the
// folder service.
//
// Every operation dispatches its request on a goroutine and returns at once
// with a channel that is closed after the completion has been applied. The
// forest only ever changes after the service confirms a mutation, and each
// change installs a fresh value, so a Snapshot stays valid after later
// operations complete.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/tree"
)

// User-facing error messages. The underlying error is only logged.
const (
	MsgFetchFailed  = "Failed to fetch folders."
	MsgAddFailed    = "Failed to add folder."
	MsgDeleteFailed = "Failed to delete folder."
	MsgInvalidID    = "Folder ID is invalid."
)

// Status is the loading state of the store.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
)

func (s Status) String() string {
	if s == StatusLoading {
		return "loading"
	}
	return "idle"
}

// Service is the folder service boundary the store drives.
type Service interface {
	List(ctx context.Context) ([]models.Record, error)
	Create(ctx context.Context, name string, parentID *string) (models.Record, error)
	Delete(ctx context.Context, id string) error
}

// Snapshot is a consistent view of the store's state.
type Snapshot struct {
	Forest    []models.Node
	Status    Status
	LastError string
}

// Store owns the folder forest, the loading status and the last error.
type Store struct {
	svc    Service
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	forest     []models.Node
	loads      int // loads in flight
	lastError  string
	generation uint64
	closed     bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for failed operations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithForest seeds the store with an initial forest.
func WithForest(forest []models.Node) Option {
	return func(s *Store) {
		s.forest = forest
	}
}

// New creates a store backed by svc. The forest starts empty.
func New(svc Service, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		svc:    svc,
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
		forest: []models.Node{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	st := StatusIdle
	if s.loads > 0 {
		st = StatusLoading
	}
	return Snapshot{Forest: s.forest, Status: st, LastError: s.lastError}
}

// Load replaces the forest with the folder service's full listing.
// Overlapping loads apply in completion order; the status stays loading
// until the last of them completes.
func (s *Store) Load() <-chan struct{} {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return closedChan()
	}
	s.loads++
	s.lastError = ""
	gen := s.generation
	s.mu.Unlock()

	return s.dispatch(gen, "load", func(ctx context.Context) func() {
		records, err := s.svc.List(ctx)
		return func() {
			s.loads--
			if err != nil {
				s.logger.Error("store: load failed", slog.String("error", err.Error()))
				s.lastError = MsgFetchFailed
				return
			}
			s.forest = tree.Build(records)
			s.logger.Debug("store: loaded", slog.Int("records", len(records)))
		}
	})
}

// CreateFolder asks the service to create name under parentID (nil for a
// root-level folder) and inserts the confirmed folder into the forest.
// name is expected to be non-empty; it is not validated here.
func (s *Store) CreateFolder(name string, parentID *string) <-chan struct{} {
	if parentID != nil {
		p := *parentID
		parentID = &p
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return closedChan()
	}
	s.lastError = ""
	gen := s.generation
	s.mu.Unlock()

	return s.dispatch(gen, "create", func(ctx context.Context) func() {
		rec, err := s.svc.Create(ctx, name, parentID)
		return func() {
			if err != nil {
				s.logger.Error("store: create failed",
					slog.String("name", name),
					slog.String("error", err.Error()))
				s.lastError = MsgAddFailed
				return
			}
			s.forest = tree.InsertUnder(s.forest, parentID, models.NodeFromRecord(rec))
		}
	})
}

// DeleteFolder asks the service to delete folderID and removes it with its
// whole subtree once confirmed. An empty id or the root sentinel fails
// immediately without contacting the service.
func (s *Store) DeleteFolder(folderID string) <-chan struct{} {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return closedChan()
	}
	if folderID == "" || tree.IsRoot(folderID) {
		s.lastError = MsgInvalidID
		s.mu.Unlock()
		s.logger.Warn("store: delete rejected", slog.String("id", folderID))
		return closedChan()
	}
	s.lastError = ""
	gen := s.generation
	s.mu.Unlock()

	return s.dispatch(gen, "delete", func(ctx context.Context) func() {
		err := s.svc.Delete(ctx, folderID)
		return func() {
			if err != nil {
				s.logger.Error("store: delete failed",
					slog.String("id", folderID),
					slog.String("error", err.Error()))
				s.lastError = MsgDeleteFailed
				return
			}
			s.forest = tree.RemoveSubtree(s.forest, folderID)
		}
	})
}

// Close cancels in-flight requests and discards any completion that arrives
// afterwards. Later operations are no-ops.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.loads = 0
	s.mu.Unlock()
	s.cancel()
}

// dispatch runs call on its own goroutine and applies the returned effect
// under the lock, unless the store moved to a newer generation meanwhile.
func (s *Store) dispatch(gen uint64, op string, call func(ctx context.Context) func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		apply := call(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation {
			s.logger.Debug("store: discarded stale completion", slog.String("op", op))
			return
		}
		apply()
	}()
	return done
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
