package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/propertypath"
)

// Default bound of the mount barrier: DefaultMountRetries × DefaultMountDelay.
const (
	DefaultMountRetries = 50
	DefaultMountDelay   = 100 * time.Millisecond
)

// Status is the lifecycle state of the page document.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusLoaded   Status = "loaded"
	StatusUpdating Status = "updating"
)

// Interactivity receives the selection translators declared by a page.
type Interactivity interface {
	Clear()
	RegisterTranslator(t domain.SelectionTranslator)
}

// Store holds the page of one session. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	page           *domain.Page
	reportActionID string
	headless       bool
	generation     uint64
	replaced       chan struct{}

	isDialog    bool
	isReporting bool
	isView      bool

	loading            map[string]chan struct{}
	reexecuting        []string
	reexecutionUpdates int

	imagesWaiting    map[string]struct{}
	reportingContent map[string]any

	interactivity Interactivity
	mountRetries  int
	mountDelay    time.Duration
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithInteractivity sets where selection translators are registered.
func WithInteractivity(i Interactivity) Option {
	return func(s *Store) {
		s.interactivity = i
	}
}

// WithMountBarrier bounds WaitForMount to retries × delay.
func WithMountBarrier(retries int, delay time.Duration) Option {
	return func(s *Store) {
		s.mountRetries = retries
		s.mountDelay = delay
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		replaced:         make(chan struct{}),
		loading:          make(map[string]chan struct{}),
		imagesWaiting:    make(map[string]struct{}),
		reportingContent: make(map[string]any),
		mountRetries:     DefaultMountRetries,
		mountDelay:       DefaultMountDelay,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPage replaces the page. Reporting bookkeeping, the loading set and the
// re-executing set are reset, the layout flags are derived from the new page
// and the selection translators are re-registered. A nil page empties the
// store.
func (s *Store) SetPage(ctx context.Context, req domain.PageRequest) {
	s.mu.Lock()
	s.page = req.Page.Clone()
	s.reportActionID = req.ReportActionID
	s.headless = req.Headless
	s.generation++
	close(s.replaced)
	s.replaced = make(chan struct{})

	s.isDialog = s.page.HasDialog()
	s.isReporting = req.ReportActionID != ""
	s.isView = !s.isDialog && !s.isReporting && !req.Headless

	s.loading = make(map[string]chan struct{})
	s.reexecuting = nil
	s.reexecutionUpdates = 0
	s.imagesWaiting = make(map[string]struct{})
	s.reportingContent = make(map[string]any)

	var translators []domain.SelectionTranslator
	if s.page != nil && s.page.Configuration != nil {
		translators = s.page.Configuration.SelectionTranslators
	}
	gen := s.generation
	ids := s.page.NodeIDs()
	s.mu.Unlock()

	if s.interactivity != nil {
		s.interactivity.Clear()
		for _, t := range translators {
			s.interactivity.RegisterTranslator(t)
		}
	}

	s.logger.Debug("Page set", "generation", gen, "nodes", len(ids))
	if s.hooks.OnPageSet != nil {
		s.hooks.OnPageSet(ctx, &domain.PageEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventPageSet},
			Generation: gen,
			NodeIDs:    ids,
		})
	}
}

// UpdateView applies a widget update event. With Update set, every dotted
// path is applied onto the node configuration; a key that cannot be applied
// is logged and skipped without affecting the others. Without Update the
// node configuration is replaced by Config (minus any required override), or
// removed when Config is nil.
func (s *Store) UpdateView(ctx context.Context, u domain.ViewUpdate) error {
	if u.NodeID == "" {
		return errors.New("view update without node id")
	}
	viewType := u.ViewType
	if viewType == "" {
		viewType = domain.ViewWebNodes
	}

	s.mu.Lock()
	nodes := s.nodesLocked(viewType)
	if len(u.Update) > 0 {
		cfg := nodes[u.NodeID]
		if cfg == nil {
			cfg = domain.NodeConfig{}
			nodes[u.NodeID] = cfg
		}
		for _, key := range sortedKeys(u.Update) {
			path, err := propertypath.Parse(key)
			if err == nil {
				err = propertypath.Set(cfg, path, domain.DeepCopy(u.Update[key]))
			}
			if err != nil {
				s.logger.Warn("Skipping view update key", "node_id", u.NodeID, "key", key, "err", err)
			}
		}
	} else if u.Config == nil {
		delete(nodes, u.NodeID)
	} else {
		nodes[u.NodeID] = u.Config.WithoutRequired()
	}
	gen := s.generation
	s.mu.Unlock()

	if s.hooks.OnViewUpdated != nil {
		s.hooks.OnViewUpdated(ctx, &domain.PageEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventViewUpdated},
			Generation: gen,
			NodeIDs:    []string{u.NodeID},
			ViewType:   viewType,
		})
	}
	return nil
}

// UpdatePage merges the configurations of nodeIDs from page into the stored
// page and re-registers the selection translators page declares.
func (s *Store) UpdatePage(ctx context.Context, page *domain.Page, nodeIDs []string) {
	if page == nil {
		return
	}

	s.mu.Lock()
	if s.page == nil {
		s.page = &domain.Page{}
	}
	var applied []string
	for _, id := range nodeIDs {
		found := false
		if cfg, ok := page.WebNodes[id]; ok {
			s.nodesLocked(domain.ViewWebNodes)[id] = cfg.WithoutRequired()
			found = true
		}
		if cfg, ok := page.NodeViews[id]; ok {
			s.nodesLocked(domain.ViewNodeViews)[id] = cfg.WithoutRequired()
			found = true
		}
		if found {
			applied = append(applied, id)
		} else {
			s.logger.Debug("Node missing from page update", "node_id", id)
		}
	}

	var translators []domain.SelectionTranslator
	if page.Configuration != nil && len(page.Configuration.SelectionTranslators) > 0 {
		translators = page.Configuration.SelectionTranslators
		if s.page.Configuration == nil {
			s.page.Configuration = &domain.PageConfiguration{}
		}
		s.page.Configuration.SelectionTranslators = append([]domain.SelectionTranslator(nil), translators...)
	}
	gen := s.generation
	s.mu.Unlock()

	if s.interactivity != nil {
		for _, t := range translators {
			s.interactivity.RegisterTranslator(t)
		}
	}

	if s.hooks.OnViewUpdated != nil && len(applied) > 0 {
		s.hooks.OnViewUpdated(ctx, &domain.PageEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventViewUpdated},
			Generation: gen,
			NodeIDs:    applied,
		})
	}
}

// nodesLocked returns the collection for viewType, creating the page and
// the collection when absent. Caller holds s.mu.
func (s *Store) nodesLocked(viewType domain.ViewType) map[string]domain.NodeConfig {
	if s.page == nil {
		s.page = &domain.Page{}
	}
	if viewType == domain.ViewNodeViews {
		if s.page.NodeViews == nil {
			s.page.NodeViews = make(map[string]domain.NodeConfig)
		}
		return s.page.NodeViews
	}
	if s.page.WebNodes == nil {
		s.page.WebNodes = make(map[string]domain.NodeConfig)
	}
	return s.page.WebNodes
}

// Page returns a deep copy of the current page, or nil.
func (s *Store) Page() *domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Clone()
}

// NodeConfig returns a copy of the configuration of one node.
func (s *Store) NodeConfig(viewType domain.ViewType, id string) (domain.NodeConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.page.Nodes(viewType)[id]
	return cfg.Clone(), ok
}

// NodeIDs returns the ids of all nodes on the page, sorted.
func (s *Store) NodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.NodeIDs()
}

// Generation returns the page replacement counter.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Status returns the lifecycle state of the page.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.page == nil:
		return StatusEmpty
	case len(s.reexecuting) > 0:
		return StatusUpdating
	default:
		return StatusLoaded
	}
}

// IsDialog reports whether the page shows a node dialog.
func (s *Store) IsDialog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDialog
}

// IsReporting reports whether the page is rendered for a report.
func (s *Store) IsReporting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReporting
}

// IsView reports whether the page is a plain interactive view.
func (s *Store) IsView() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isView
}

// ReportActionID returns the report action of a reporting page.
func (s *Store) ReportActionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportActionID
}

// Headless reports whether the page was loaded without a UI.
func (s *Store) Headless() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headless
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
