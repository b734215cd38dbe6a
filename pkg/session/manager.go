package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/pagebuilder"
	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// Factory creates the App of a new or restored session.
type Factory func(sessionID string) *pagebuilder.App

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store   ports.SnapshotStore
	factory Factory

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	apps  map[string]*pagebuilder.App

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of the distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithFactory sets how Apps are built. The default builds bare Apps.
func WithFactory(f Factory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		apps:    make(map[string]*pagebuilder.App),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.factory == nil {
		logger := m.logger
		m.factory = func(id string) *pagebuilder.App {
			return pagebuilder.New(id, pagebuilder.WithLogger(logger))
		}
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Get returns the App of an existing session, restoring it from its
// snapshot when it is not live on this replica.
func (m *Manager) Get(ctx context.Context, sessionID string) (*pagebuilder.App, error) {
	var app *pagebuilder.App
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		app, err = m.get(ctx, sessionID)
		return err
	})
	return app, err
}

// Open returns the App of a session, creating and persisting an empty one
// when it does not exist.
func (m *Manager) Open(ctx context.Context, sessionID string) (*pagebuilder.App, error) {
	var app *pagebuilder.App
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		app, err = m.get(ctx, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		app = m.factory(sessionID)
		if err := m.persist(ctx, app); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		m.mu.Lock()
		m.apps[sessionID] = app
		m.mu.Unlock()
		m.logger.Info("Session created", "session_id", sessionID)
		return nil
	})
	return app, err
}

// LoadPage replaces the page of a session, creating the session if needed,
// and persists it.
func (m *Manager) LoadPage(ctx context.Context, sessionID string, req domain.PageRequest) (*pagebuilder.App, error) {
	app, err := m.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	err = m.Update(ctx, sessionID, func(ctx context.Context, app *pagebuilder.App) error {
		app.Load(ctx, req)
		return nil
	})
	return app, err
}

// Update runs fn on the App of an existing session under its lock, then
// persists the session. Nothing is persisted when fn fails.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(context.Context, *pagebuilder.App) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		app, err := m.get(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(ctx, app); err != nil {
			return err
		}
		return m.persist(ctx, app)
	})
}

// View runs fn on the App of an existing session under its lock.
func (m *Manager) View(ctx context.Context, sessionID string, fn func(context.Context, *pagebuilder.App) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		app, err := m.get(ctx, sessionID)
		if err != nil {
			return err
		}
		return fn(ctx, app)
	})
}

// Save persists the live App of a session. Long running operations such as
// a re-execution run outside the session lock and call Save once done.
func (m *Manager) Save(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		app, ok := m.apps[sessionID]
		m.mu.Unlock()
		if !ok {
			return domain.ErrSessionNotFound
		}
		return m.persist(ctx, app)
	})
}

// Delete removes the session from memory and from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.evict(sessionID)
		return m.store.Delete(ctx, sessionID)
	})
}

// Evict drops the live App of a session without touching the store. The next
// access restores it from its snapshot.
func (m *Manager) Evict(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.evict(sessionID)
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Live returns the ids of the sessions held in memory, sorted.
func (m *Manager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.apps))
	for id := range m.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// get must be called with the session lock held.
func (m *Manager) get(ctx context.Context, sessionID string) (*pagebuilder.App, error) {
	m.mu.Lock()
	app, ok := m.apps[sessionID]
	m.mu.Unlock()
	if ok {
		return app, nil
	}

	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	app = m.factory(sessionID)
	app.Restore(ctx, snap)

	m.mu.Lock()
	m.apps[sessionID] = app
	m.mu.Unlock()
	m.logger.Debug("Session restored", "session_id", sessionID)
	return app, nil
}

func (m *Manager) persist(ctx context.Context, app *pagebuilder.App) error {
	if err := m.store.Save(ctx, app.ID(), app.Snapshot()); err != nil {
		return fmt.Errorf("failed to save session %s: %w", app.ID(), err)
	}
	return nil
}

func (m *Manager) evict(sessionID string) {
	m.mu.Lock()
	app, ok := m.apps[sessionID]
	delete(m.apps, sessionID)
	m.mu.Unlock()
	if ok {
		app.Load(context.Background(), domain.PageRequest{})
	}
}
