package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/pagebuilder"
	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/internal/presentation/graph"
	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/ports"
	"github.com/aretw0/pagebuilder/pkg/reexec"
	"github.com/aretw0/pagebuilder/pkg/session"
	"github.com/aretw0/pagebuilder/pkg/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// globalStream is the stream id of events not bound to a session.
const globalStream = ""

// maxBodySize bounds request bodies.
const maxBodySize = 4 << 20

// Server exposes page sessions over HTTP and streams their changes as
// server-sent events.
type Server struct {
	sessions *session.Manager
	streams  *StreamManager
	widgets  *widgetSet
	loader   ports.PageLoader
	gatherer prometheus.Gatherer
	origins  []string
	appOpts  []pagebuilder.Option
	sessOpts []session.Option
	logger   *slog.Logger

	mu    sync.Mutex
	bound map[string]string // SessionID -> page name loaded through the loader
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger of the server and of the sessions it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAppOptions adds options to every App the server creates. An alert sink
// set here replaces the event stream sink; use an OnAlert hook instead.
func WithAppOptions(opts ...pagebuilder.Option) Option {
	return func(s *Server) {
		s.appOpts = append(s.appOpts, opts...)
	}
}

// WithSessionOptions configures the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Server) {
		s.sessOpts = append(s.sessOpts, opts...)
	}
}

// WithLoader serves named pages from loader.
func WithLoader(loader ports.PageLoader) Option {
	return func(s *Server) {
		s.loader = loader
	}
}

// WithGatherer sets the registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// NewServer creates a server persisting sessions in store.
func NewServer(store ports.SnapshotStore, opts ...Option) *Server {
	s := &Server{
		widgets:  newWidgetSet(),
		gatherer: prometheus.DefaultGatherer,
		origins:  []string{"*"},
		logger:   logging.NewNop(),
		bound:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(0, s.logger)
	sessOpts := append([]session.Option{
		session.WithLogger(s.logger),
		session.WithFactory(s.newApp),
	}, s.sessOpts...)
	s.sessions = session.NewManager(store, sessOpts...)
	return s
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Streams returns the event stream manager.
func (s *Server) Streams() *StreamManager { return s.streams }

// pageData is the payload of page events.
type pageData struct {
	Generation uint64           `json:"generation"`
	NodeIDs    []string         `json:"nodeIds,omitempty"`
	Diff       *domain.PageDiff `json:"diff,omitempty"`
}

// reexecutionData is the payload of re-execution events.
type reexecutionData struct {
	NodeID     string   `json:"nodeId,omitempty"`
	NodeIDs    []string `json:"nodeIds,omitempty"`
	Polls      int      `json:"polls,omitempty"`
	DurationMS int64    `json:"durationMs,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// newApp builds the App of a session with hooks feeding its event stream.
func (s *Server) newApp(id string) *pagebuilder.App {
	var app *pagebuilder.App
	hooks := domain.LifecycleHooks{
		OnPageSet: func(_ context.Context, e *domain.PageEvent) {
			s.widgets.clear(id)
			s.streams.Broadcast(id, Event{Type: e.Type, Data: pageData{
				Generation: e.Generation,
				NodeIDs:    e.NodeIDs,
				Diff:       domain.Diff(nil, app.Store().Page()),
			}})
		},
		OnViewUpdated: func(_ context.Context, e *domain.PageEvent) {
			s.streams.Broadcast(id, Event{Type: e.Type, Data: pageData{
				Generation: e.Generation,
				NodeIDs:    e.NodeIDs,
				Diff:       nodeDiff(app.Store(), e.NodeIDs),
			}})
		},
		OnReexecutingChanged: func(_ context.Context, ids []string) {
			s.streams.Broadcast(id, Event{Type: domain.EventReexecutingChanged, Data: reexecutionData{NodeIDs: ids}})
		},
		OnReexecutionDone: func(_ context.Context, e *domain.ReexecutionEvent) {
			data := reexecutionData{NodeID: e.NodeID, Polls: e.Round, DurationMS: e.Duration.Milliseconds()}
			if e.Err != nil {
				data.Error = e.Err.Error()
			}
			s.streams.Broadcast(id, Event{Type: e.Type, Data: data})
		},
	}
	alerts := ports.AlertFunc(func(_ context.Context, a domain.Alert) {
		s.streams.Broadcast(id, Event{Type: domain.EventAlert, Data: a})
	})

	opts := append([]pagebuilder.Option{
		pagebuilder.WithLogger(s.logger),
		pagebuilder.WithLifecycleHooks(hooks),
		pagebuilder.WithAlertSink(alerts),
	}, s.appOpts...)
	app = pagebuilder.New(id, opts...)
	return app
}

// nodeDiff collects the current configuration of ids. Removed nodes map to
// nil.
func nodeDiff(st *store.Store, ids []string) *domain.PageDiff {
	diff := &domain.PageDiff{WebNodes: map[string]domain.NodeConfig{}}
	for _, id := range ids {
		if cfg, ok := st.NodeConfig(domain.ViewNodeViews, id); ok {
			if diff.NodeViews == nil {
				diff.NodeViews = map[string]domain.NodeConfig{}
			}
			diff.NodeViews[id] = cfg
			continue
		}
		cfg, _ := st.NodeConfig(domain.ViewWebNodes, id)
		diff.WebNodes[id] = cfg
	}
	return diff
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/events", s.SubscribeGlobal)
	r.Get("/pages", s.ListPages)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.DeleteSession)
			r.Get("/page", s.GetPage)
			r.Put("/page", s.PutPage)
			r.Put("/page/{name}", s.LoadNamedPage)
			r.Post("/views", s.UpdateView)
			r.Post("/values/{nodeID}", s.PushValue)
			r.Delete("/values/{nodeID}", s.UnmountWidget)
			r.Post("/reexecute/{nodeID}", s.Reexecute)
			r.Post("/errors", s.PushErrors)
			r.Post("/selection/{nodeID}", s.PublishSelection)
			r.Get("/dirty", s.GetDirty)
			r.Get("/graph", s.GetGraph)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// requestError marks errors caused by the request itself.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

// StatusFor maps an error of the session API to an HTTP status.
func StatusFor(err error) int {
	var (
		reqErr       *requestError
		validation   *domain.ValidationError
		retrieval    *domain.ValueRetrievalError
		unsupported  *domain.TransportUnsupportedError
		remote       *domain.RemoteExecutionError
		mountTimeout *domain.MountTimeoutError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrPageNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &retrieval):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStalePage), errors.Is(err, domain.ErrNoPage):
		return http.StatusConflict
	case errors.As(err, &unsupported):
		return http.StatusNotImplemented
	case errors.As(err, &remote), errors.Is(err, domain.ErrMalformedResult):
		return http.StatusBadGateway
	case errors.Is(err, reexec.ErrPollLimit), errors.Is(err, context.DeadlineExceeded), errors.As(err, &mountTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":      "pagebuilder-http",
		"version":  pagebuilder.Version,
		"sessions": len(s.sessions.Live()),
	})
}

// ListPages handles the GET /pages request.
func (s *Server) ListPages(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	names, err := s.loader.ListPages(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	if _, err := s.sessions.Open(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteSession handles the DELETE /sessions/{sessionID} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.widgets.clear(id)
	s.unbind(id)
	w.WriteHeader(http.StatusNoContent)
}

// PageState is the response of the page endpoints.
type PageState struct {
	SessionID      string       `json:"sessionId"`
	Status         store.Status `json:"status"`
	Generation     uint64       `json:"generation"`
	Page           *domain.Page `json:"page,omitempty"`
	ReportActionID string       `json:"reportActionId,omitempty"`
	Headless       bool         `json:"headless,omitempty"`
	IsDialog       bool         `json:"isDialog"`
	IsReporting    bool         `json:"isReporting"`
	IsView         bool         `json:"isView"`
	Reexecuting    []string     `json:"reexecuting"`
	Loading        []string     `json:"loading"`
}

func pageState(app *pagebuilder.App) PageState {
	st := app.Store()
	return PageState{
		SessionID:      app.ID(),
		Status:         st.Status(),
		Generation:     st.Generation(),
		Page:           st.Page(),
		ReportActionID: st.ReportActionID(),
		Headless:       st.Headless(),
		IsDialog:       st.IsDialog(),
		IsReporting:    st.IsReporting(),
		IsView:         st.IsView(),
		Reexecuting:    append([]string{}, st.NodesReExecuting()...),
		Loading:        append([]string{}, st.LoadingNodes()...),
	}
}

// GetPage handles the GET /sessions/{sessionID}/page request.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	var state PageState
	err := s.sessions.View(r.Context(), chi.URLParam(r, "sessionID"), func(_ context.Context, app *pagebuilder.App) error {
		state = pageState(app)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// PutPage handles the PUT /sessions/{sessionID}/page request. The body is a
// page request, or a bare page, validated against the page schema. The
// session is created when it does not exist.
func (s *Server) PutPage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, r, badRequest("failed to read body: %v", err))
		return
	}
	req, err := file.DecodePageDocument(data, "json")
	if err != nil {
		s.writeError(w, r, &requestError{err: err})
		return
	}
	id := chi.URLParam(r, "sessionID")
	s.unbind(id)
	s.loadPage(w, r, id, *req)
}

// LoadNamedPage handles the PUT /sessions/{sessionID}/page/{name} request:
// the page is read from the configured loader and reloaded whenever the
// loader reports a change to it.
func (s *Server) LoadNamedPage(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.writeError(w, r, fmt.Errorf("%w: no page loader configured", domain.ErrPageNotFound))
		return
	}
	name := chi.URLParam(r, "name")
	req, err := s.loader.LoadPage(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "sessionID")
	s.bind(id, name)
	s.loadPage(w, r, id, *req)
}

func (s *Server) loadPage(w http.ResponseWriter, r *http.Request, id string, req domain.PageRequest) {
	app, err := s.sessions.LoadPage(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageState(app))
}

func (s *Server) bind(sessionID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound[sessionID] = name
}

func (s *Server) unbind(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bound, sessionID)
}

func (s *Server) boundTo(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, n := range s.bound {
		if n == name {
			ids = append(ids, id)
		}
	}
	return ids
}

// WatchPages reloads the sessions bound to a page whenever the loader reports
// a change to it, and announces every change on the global stream. It blocks
// until ctx is done.
func (s *Server) WatchPages(ctx context.Context) error {
	watchable, ok := s.loader.(ports.Watchable)
	if !ok {
		return errors.New("page loader cannot be watched")
	}
	changes, err := watchable.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch pages: %w", err)
	}
	for name := range changes {
		s.logger.Info("Page changed", "page", name)
		s.streams.Broadcast(globalStream, Event{Type: EventPagesChanged, Data: map[string]string{"page": name}})

		for _, id := range s.boundTo(name) {
			req, err := s.loader.LoadPage(ctx, name)
			if err != nil {
				s.logger.Warn("Page reload failed", "page", name, "session_id", id, "err", err)
				continue
			}
			if _, err := s.sessions.LoadPage(ctx, id, *req); err != nil {
				s.logger.Warn("Page reload failed", "page", name, "session_id", id, "err", err)
			}
		}
	}
	return ctx.Err()
}

// UpdateView handles the POST /sessions/{sessionID}/views request.
func (s *Server) UpdateView(w http.ResponseWriter, r *http.Request) {
	var u domain.ViewUpdate
	if err := decodeBody(r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}
	if u.NodeID == "" {
		s.writeError(w, r, badRequest("nodeId is required"))
		return
	}
	err := s.sessions.Update(r.Context(), chi.URLParam(r, "sessionID"), func(ctx context.Context, app *pagebuilder.App) error {
		return app.UpdateView(ctx, u)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PushValue handles the POST /sessions/{sessionID}/values/{nodeID} request.
// The first push mounts the widget. The first value reported while not
// loading, on mount or after a re-execution applied the node, becomes the
// clean value.
func (s *Server) PushValue(w http.ResponseWriter, r *http.Request) {
	var p ValuePush
	if err := decodeBody(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "sessionID")
	nodeID := chi.URLParam(r, "nodeID")

	var dirty bool
	err := s.sessions.Update(r.Context(), id, func(ctx context.Context, app *pagebuilder.App) error {
		widget, _ := s.widgets.get(id, nodeID, func() *remoteWidget {
			return newRemoteWidget(nodeID, s.onValidationError(id), s.onSelection(id))
		})
		widget.set(p)
		if _, ok := app.Registry().Provider(nodeID); !ok {
			app.Mount(nodeID, widget.widget())
		}
		if p.Loading {
			app.Store().SetNodeLoading(nodeID, true)
			return nil
		}
		if err := app.Settle(ctx, nodeID); err != nil {
			return err
		}
		dirty = app.Tracker().IsDirty(nodeID, p.Value)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dirty": dirty})
}

func (s *Server) onValidationError(sessionID string) func(string, string) {
	return func(nodeID, message string) {
		s.streams.Broadcast(sessionID, Event{Type: EventValidationError, Data: map[string]string{
			"nodeId":  nodeID,
			"message": message,
		}})
	}
}

func (s *Server) onSelection(sessionID string) func(string, string, []string) {
	return func(nodeID, sourceID string, selection []string) {
		s.streams.Broadcast(sessionID, Event{Type: EventSelection, Data: map[string]any{
			"nodeId":    nodeID,
			"sourceId":  sourceID,
			"selection": selection,
		}})
	}
}

// UnmountWidget handles the DELETE /sessions/{sessionID}/values/{nodeID} request.
func (s *Server) UnmountWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	nodeID := chi.URLParam(r, "nodeID")
	err := s.sessions.Update(r.Context(), id, func(_ context.Context, app *pagebuilder.App) error {
		app.Unmount(nodeID)
		s.widgets.remove(id, nodeID)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reexecute handles the POST /sessions/{sessionID}/reexecute/{nodeID}
// request. The round runs outside the session lock so that widgets keep
// pushing values while the backend polls; the session is saved afterwards.
func (s *Server) Reexecute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	nodeID := chi.URLParam(r, "nodeID")

	app, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	runErr := app.TriggerReExecution(r.Context(), nodeID)
	if err := s.sessions.Save(context.WithoutCancel(r.Context()), id); err != nil {
		s.logger.Error("Failed to save session after re-execution", "session_id", id, "err", err)
	}
	if runErr != nil {
		s.writeError(w, r, runErr)
		return
	}
	s.logger.Debug("Re-execution request served", "session_id", id, "node_id", nodeID, "duration", time.Since(start))
	writeJSON(w, http.StatusOK, pageState(app))
}

// PushErrors handles the POST /sessions/{sessionID}/errors request: server
// side validation messages keyed by node id.
func (s *Server) PushErrors(w http.ResponseWriter, r *http.Request) {
	var messages map[string]string
	if err := decodeBody(r, &messages); err != nil {
		s.writeError(w, r, err)
		return
	}
	var delivered bool
	err := s.sessions.View(r.Context(), chi.URLParam(r, "sessionID"), func(ctx context.Context, app *pagebuilder.App) error {
		delivered = app.PushValidationErrors(ctx, messages)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"delivered": delivered})
}

// SelectionRequest is the body of POST /sessions/{sessionID}/selection/{nodeID}.
type SelectionRequest struct {
	Mode      string   `json:"mode"`
	Selection []string `json:"selection"`
}

// PublishSelection handles the POST /sessions/{sessionID}/selection/{nodeID} request.
func (s *Server) PublishSelection(w http.ResponseWriter, r *http.Request) {
	var body SelectionRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	var delivered int
	err := s.sessions.View(r.Context(), chi.URLParam(r, "sessionID"), func(ctx context.Context, app *pagebuilder.App) error {
		var err error
		delivered, err = app.PublishSelection(ctx, nodeID, body.Mode, body.Selection)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

// DirtyState is the response of GET /sessions/{sessionID}/dirty.
type DirtyState struct {
	Dirty bool              `json:"dirty"`
	Nodes map[string]string `json:"nodes"`
}

// GetDirty handles the GET /sessions/{sessionID}/dirty request.
func (s *Server) GetDirty(w http.ResponseWriter, r *http.Request) {
	var state DirtyState
	err := s.sessions.View(r.Context(), chi.URLParam(r, "sessionID"), func(ctx context.Context, app *pagebuilder.App) error {
		nodes, err := app.Dirty(ctx)
		if err != nil {
			return err
		}
		state = DirtyState{Dirty: len(nodes) > 0, Nodes: nodes}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetGraph handles the GET /sessions/{sessionID}/graph request: a Mermaid
// flowchart of the page with dirty and re-executing nodes highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var chart string
	err := s.sessions.View(r.Context(), chi.URLParam(r, "sessionID"), func(ctx context.Context, app *pagebuilder.App) error {
		dirty, err := app.Dirty(ctx)
		if err != nil {
			return err
		}
		overlay := &graph.Overlay{ReexecutingNodes: app.Store().NodesReExecuting()}
		for id := range dirty {
			overlay.DirtyNodes = append(overlay.DirtyNodes, id)
		}
		chart = graph.GenerateMermaid(app.Store().Page(), overlay)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, chart)
}

// SubscribeEvents handles the GET /sessions/{sessionID}/events request (SSE).
// The optional "types" query parameter filters events by type.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.stream(w, r, id)
}

// SubscribeGlobal handles the GET /events request (SSE): page file changes.
func (s *Server) SubscribeGlobal(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, globalStream)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, streamID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SSE: Streaming not supported")
		return
	}

	var filter map[string]bool
	if types := r.URL.Query().Get("types"); types != "" {
		filter = make(map[string]bool)
		for _, t := range strings.Split(types, ",") {
			filter[strings.TrimSpace(t)] = true
		}
	}

	ch, cancel := s.streams.Subscribe(streamID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Client subscribed", "session_id", streamID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", streamID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if filter != nil && !filter[msg.Event] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}
