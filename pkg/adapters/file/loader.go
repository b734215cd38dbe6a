package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Extensions lists the page file extensions in lookup order.
var Extensions = []string{".yaml", ".yml", ".json"}

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Loader implements ports.PageLoader and ports.Watchable over a directory
// of YAML or JSON page files. The page name is the file name without
// extension.
type Loader struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
}

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithLogger configures a logger for the Loader.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithDebounce sets how long Watch waits for a file to settle.
func WithDebounce(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.debounce = d
	}
}

// NewLoader creates a loader reading pages from dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir:      dir,
		debounce: DefaultDebounce,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the directory the loader reads from.
func (l *Loader) Dir() string {
	return l.dir
}

// LoadPage reads and validates the page called name.
func (l *Loader) LoadPage(ctx context.Context, name string) (*domain.PageRequest, error) {
	for _, ext := range Extensions {
		path := filepath.Join(l.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return ReadPageFile(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPageNotFound, name)
}

// ListPages returns the names of all page files, sorted.
func (l *Loader) ListPages(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	seen := make(map[string]struct{})
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := PageName(entry.Name())
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Watch emits the name of every page file that was written, created,
// renamed or removed. Events are debounced per burst.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer w.Close()

		pending := make(map[string]struct{})
		timer := time.NewTimer(l.debounce)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				name, ok := PageName(filepath.Base(ev.Name))
				if !ok {
					continue
				}
				pending[name] = struct{}{}
				timer.Reset(l.debounce)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("Page watcher error", "dir", l.dir, "err", err)

			case <-timer.C:
				names := make([]string, 0, len(pending))
				for name := range pending {
					names = append(names, name)
				}
				sort.Strings(names)
				pending = make(map[string]struct{})

				for _, name := range names {
					l.logger.Debug("Page changed", "page", name)
					select {
					case out <- name:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// PageName strips a page file extension. It reports false for other files.
func PageName(fileName string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, known := range Extensions {
		if ext == known {
			return strings.TrimSuffix(fileName, filepath.Ext(fileName)), true
		}
	}
	return "", false
}

// ReadPageFile reads, validates and decodes a page file. The format follows
// the extension.
func ReadPageFile(path string) (*domain.PageRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page file: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	req, err := DecodePageDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// DecodePageDocument decodes a page document in the given format ("json" or
// "yaml"). The document is either a bare page or a page request with the page
// under "page".
func DecodePageDocument(data []byte, format string) (*domain.PageRequest, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	req := &domain.PageRequest{}
	req.ReportActionID, _ = doc["reportActionId"].(string)
	req.Headless, _ = doc["headless"].(bool)

	pageDoc := doc
	if nested, ok := doc["page"].(map[string]any); ok {
		pageDoc = nested
	}
	page, err := domain.DecodePage(pageDoc)
	if err != nil {
		return nil, err
	}
	req.Page = page
	return req, nil
}

func decodeDocument(data []byte, format string) (map[string]any, error) {
	var doc map[string]any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON page: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML page: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported page format %q", format)
	}
	if doc == nil {
		return nil, errors.New("empty page document")
	}
	return doc, nil
}
