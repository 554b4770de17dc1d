// Package objectlog is the append-only on-disk log of daily result batches.
//
// Each batch becomes one NDJSON line tagged with its day, written with a
// single write on a file opened with O_APPEND and synced before Append
// returns. A reader therefore sees every entry complete or not at all.
package objectlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"tweetcrawler/pkg/config"
	"tweetcrawler/pkg/daterange"
)

// Extension of every object log file
const Extension = ".ndjson"

// Entry is one day's batch as stored on disk
type Entry struct {
	Day       string            `json:"day"`
	RunID     string            `json:"run_id,omitempty"`
	Query     string            `json:"query,omitempty"`
	WrittenAt time.Time         `json:"written_at"`
	Count     int               `json:"count"`
	Records   []json.RawMessage `json:"records"`
}

// Writer appends entries to per-day or per-run files in a directory
type Writer struct {
	dir    string
	prefix string
	layout string
	runID  string
	query  string
	sync   bool
	now    func() time.Time
	mu     sync.Mutex
}

// Option configures a Writer
type Option func(*Writer)

// WithPrefix sets the file name prefix
func WithPrefix(prefix string) Option {
	return func(w *Writer) { w.prefix = prefix }
}

// WithLayout selects config.LayoutPerDay or config.LayoutPerRun
func WithLayout(layout string) Option {
	return func(w *Writer) { w.layout = layout }
}

// WithRunID sets the run id stamped on entries. A random one is used otherwise.
func WithRunID(id string) Option {
	return func(w *Writer) { w.runID = id }
}

// WithQuery records the search query on every entry
func WithQuery(q string) Option {
	return func(w *Writer) { w.query = q }
}

// WithSync controls whether each append is fsynced. Default: true.
func WithSync(sync bool) Option {
	return func(w *Writer) { w.sync = sync }
}

// New creates a Writer rooted at dir, creating the directory if needed
func New(dir string, opts ...Option) (*Writer, error) {
	w := &Writer{
		dir:    dir,
		layout: config.LayoutPerDay,
		sync:   true,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.runID == "" {
		w.runID = uuid.NewString()
	}

	switch w.layout {
	case config.LayoutPerDay, config.LayoutPerRun:
	default:
		return nil, fmt.Errorf("objectlog: unknown layout %q", w.layout)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("objectlog: create directory %s: %w", dir, err)
	}
	return w, nil
}

// NewFromConfig creates a Writer from the output and search settings
func NewFromConfig(cfg *config.Config, runID string) (*Writer, error) {
	return New(cfg.Output.Directory,
		WithPrefix(cfg.Search.FilenamePrefix),
		WithLayout(cfg.Output.Layout),
		WithRunID(runID),
		WithQuery(cfg.Search.Query),
		WithSync(cfg.Output.Sync),
	)
}

// RunID returns the id stamped on entries
func (w *Writer) RunID() string {
	return w.runID
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the file an entry for day is appended to
func (w *Writer) Path(day string) string {
	if w.layout == config.LayoutPerRun {
		return filepath.Join(w.dir, w.prefix+"run-"+w.runID+Extension)
	}
	return filepath.Join(w.dir, w.prefix+day+Extension)
}

// Append writes records as one entry for day and returns the file it went
// to. Records are stored verbatim in the given order.
func (w *Writer) Append(ctx context.Context, day string, records []json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := daterange.Parse(day); err != nil {
		return "", fmt.Errorf("objectlog: %w", err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}

	entry := Entry{
		Day:       day,
		RunID:     w.runID,
		Query:     w.query,
		WrittenAt: w.now().UTC(),
		Count:     len(records),
		Records:   records,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("objectlog: marshal entry for %s: %w", day, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.Path(day)
	if err := w.write(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) write(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("objectlog: open %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("objectlog: write %s: %w", path, err)
	}
	if w.sync {
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("objectlog: sync %s: %w", path, err)
		}
	}
	return f.Close()
}

// List returns the object log files in dir that carry prefix, sorted by name
func List(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("objectlog: read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || filepath.Ext(name) != Extension {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
