package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deusflow/newstweet/internal/logger"
)

var (
	ErrNotLoaded          = errors.New("history is not loaded")
	ErrHistoryFileMissing = errors.New("history file does not exist")
	ErrColumnMissing      = errors.New("history column not found")
	ErrRemoteNotFound     = errors.New("remote history object not found")
	ErrConflict           = errors.New("remote history changed since sync")
)

// Precondition guards an upload against concurrent writers.
type Precondition struct {
	GenerationMatch int64 // >0: write only if the object is still at this generation
	DoesNotExist    bool  // write only if the object does not exist yet
}

// Remote is the object store copy of the history file.
type Remote interface {
	Download(ctx context.Context, dst io.Writer) (generation int64, err error)
	Upload(ctx context.Context, src io.Reader, cond Precondition) (generation int64, err error)
}

// History is the posted-headline log: a CSV file with one designated column,
// oldest row first, mirrored to a Remote.
//
// Callers must Sync and Load (or Reset) before querying; queries on an unloaded
// history fail with ErrNotLoaded.
type History struct {
	path   string
	column string
	remote Remote

	table      *table
	generation int64
	mustCreate bool
}

func NewHistory(path, column string, remote Remote) *History {
	return &History{
		path:   path,
		column: column,
		remote: remote,
	}
}

// Sync replaces the local file with the remote copy.
func (h *History) Sync(ctx context.Context) error {
	h.table = nil
	h.generation = 0
	h.mustCreate = false

	gen, err := h.writeLocal(func(w io.Writer) (int64, error) {
		return h.remote.Download(ctx, w)
	})
	if err != nil {
		return fmt.Errorf("sync history: %w", err)
	}

	h.generation = gen
	logger.Info("history downloaded", "path", h.path, "generation", gen)
	return nil
}

// Load reads the local file into memory. On failure the history stays unloaded.
func (h *History) Load() error {
	h.table = nil

	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrHistoryFileMissing, h.path)
		}
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	t, err := readTable(f, h.column)
	if err != nil {
		return fmt.Errorf("load history %s: %w", h.path, err)
	}

	h.table = t
	logger.Info("history loaded", "path", h.path, "entries", len(t.rows))
	return nil
}

// Reset starts an empty history. The next push only succeeds if the remote
// object still does not exist.
func (h *History) Reset() {
	h.table = &table{header: []string{h.column}}
	h.generation = 0
	h.mustCreate = true
}

// Loaded reports whether the history can be queried.
func (h *History) Loaded() bool {
	return h.table != nil
}

// Entries returns the designated column, oldest first.
func (h *History) Entries() []string {
	if h.table == nil {
		return nil
	}
	return h.table.values(0)
}

// ExistsInRecent reports whether item equals one of the last window entries.
func (h *History) ExistsInRecent(item string, window int) (bool, error) {
	if h.table == nil {
		return false, ErrNotLoaded
	}
	if window < 1 {
		return false, nil
	}
	for _, v := range h.table.values(window) {
		if v == item {
			return true, nil
		}
	}
	return false, nil
}

// Append adds item as the newest entry, rewrites the local file and pushes it.
func (h *History) Append(ctx context.Context, item string) error {
	if h.table == nil {
		return ErrNotLoaded
	}

	h.table.add(item)
	if _, err := h.writeLocal(func(w io.Writer) (int64, error) {
		return 0, h.table.write(w)
	}); err != nil {
		h.table.rows = h.table.rows[:len(h.table.rows)-1]
		return fmt.Errorf("save history: %w", err)
	}
	logger.Debug("history saved", "path", h.path, "entries", len(h.table.rows))

	return h.PushRemote(ctx)
}

// PushRemote uploads the local file. When the generation seen at Sync is known
// the upload is conditional on it.
func (h *History) PushRemote(ctx context.Context) error {
	f, err := os.Open(h.path)
	if err != nil {
		return fmt.Errorf("open history for upload: %w", err)
	}
	defer f.Close()

	cond := Precondition{GenerationMatch: h.generation, DoesNotExist: h.mustCreate}
	gen, err := h.remote.Upload(ctx, f, cond)
	if err != nil {
		return fmt.Errorf("push history: %w", err)
	}

	h.generation = gen
	h.mustCreate = false
	logger.Info("history uploaded", "path", h.path, "generation", gen)
	return nil
}

// writeLocal fills a temp file next to the history file and renames it into
// place, so a failed write never leaves a truncated history behind.
func (h *History) writeLocal(fill func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(h.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(h.path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := fill(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return 0, err
	}
	return n, nil
}

type table struct {
	header []string
	rows   [][]string
	col    int
}

func readTable(r io.Reader, column string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q (empty file)", ErrColumnMissing, column)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := -1
	for i, name := range header {
		if name == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, column)
	}

	return &table{header: header, rows: records[1:], col: col}, nil
}

// values returns the designated column of the last n rows, or all rows when n is 0.
func (t *table) values(n int) []string {
	rows := t.rows
	if n > 0 && n < len(rows) {
		rows = rows[len(rows)-n:]
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if t.col < len(row) {
			out = append(out, row[t.col])
		} else {
			out = append(out, "")
		}
	}
	return out
}

func (t *table) add(item string) {
	row := make([]string, len(t.header))
	row[t.col] = item
	t.rows = append(t.rows, row)
}

func (t *table) write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	for _, row := range t.rows {
		// csv.Writer emits a lone empty field as a blank line, which readers skip.
		if len(row) == 1 && row[0] == "" {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
