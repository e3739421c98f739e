// Package session holds uploaded record sets in memory and exposes
// the HTTP surface for uploads, filtering, analysis and export. Each
// session's record slice is published once after normalization and
// never written afterwards; merges publish a fresh slice.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/pawprintlabs/pawprint/internal/db"
	"github.com/pawprintlabs/pawprint/internal/logger"
	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
)

// ErrNotFound is returned for operations on an unknown session id.
var ErrNotFound = errors.New("session: not found")

// Session is one uploaded (possibly merged) record set. Records is
// read-only once set; every merge swaps in a new slice.
type Session struct {
	ID       string
	Filename string
	LogType  string
	Columns  []string
	Records  []records.Record
	Stats    records.ParseStats
	UserMap  usermap.Map

	// ContentHash chains the digests of every uploaded file, so it
	// changes whenever the record set does. Cache keys derive from it.
	ContentHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meta is the serializable session header returned by the API.
type Meta struct {
	ID          string             `json:"id"`
	Filename    string             `json:"filename"`
	LogType     string             `json:"log_type"`
	Columns     []string           `json:"columns"`
	Rows        int                `json:"rows"`
	ParseStats  records.ParseStats `json:"parse_stats"`
	UserMapSize int                `json:"user_map_size"`
	ContentHash string             `json:"content_hash"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (s *Session) meta() Meta {
	return Meta{
		ID:          s.ID,
		Filename:    s.Filename,
		LogType:     s.LogType,
		Columns:     s.Columns,
		Rows:        len(s.Records),
		ParseStats:  s.Stats,
		UserMapSize: s.UserMap.Len(),
		ContentHash: s.ContentHash,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// Manager owns all live sessions. Sessions are independent; the lock
// only guards the map and per-session header mutations, never record
// contents.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store *db.SessionStore
	cache *db.CacheStore
}

// NewManager creates a session manager. Both stores may be nil, which
// disables persistence and caching (used by the offline CLI).
func NewManager(store *db.SessionStore, cache *db.CacheStore) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		cache:    cache,
	}
}

// Create ingests an upload into a new session. Gzip-compressed files
// are detected by their .gz suffix and decompressed transparently.
func (m *Manager) Create(ctx context.Context, filename string, r io.Reader) (Meta, error) {
	batch, recs, digest, err := ingest(filename, r)
	if err != nil {
		return Meta{}, err
	}

	now := time.Now().UTC()
	s := &Session{
		ID:          uuid.NewString(),
		Filename:    filename,
		LogType:     batch.LogType(),
		Columns:     batch.Columns,
		Records:     recs,
		Stats:       batch.Stats,
		ContentHash: digest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if m.store != nil {
		err := m.store.Put(ctx, db.SessionRow{
			ID:          s.ID,
			Filename:    s.Filename,
			LogType:     s.LogType,
			RowCount:    len(s.Records),
			SkippedRows: s.Stats.SkippedRows,
			CreatedAt:   now,
		})
		if err != nil {
			return Meta{}, err
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.L().Info().
		Str("session", s.ID).
		Str("file", filename).
		Str("log_type", s.LogType).
		Int("rows", len(recs)).
		Int("skipped", s.Stats.SkippedRows).
		Msg("session created")
	return s.meta(), nil
}

// Append merges another upload into an existing session, publishing a
// new record slice and invalidating every cached analysis.
func (m *Manager) Append(ctx context.Context, id, filename string, r io.Reader) (Meta, error) {
	batch, recs, digest, err := ingest(filename, r)
	if err != nil {
		return Meta{}, err
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Meta{}, ErrNotFound
	}

	merged := make([]records.Record, 0, len(s.Records)+len(recs))
	merged = append(merged, s.Records...)
	merged = append(merged, recs...)
	s.Records = merged
	s.Stats.Add(batch.Stats)
	s.Columns = records.MergeColumns(s.Columns, batch.Columns)
	s.LogType = records.DetectLogType(s.Columns)
	s.ContentHash = chainHash(s.ContentHash, digest)
	s.UpdatedAt = time.Now().UTC()
	meta := s.meta()
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.InvalidateSession(ctx, id); err != nil {
			return Meta{}, err
		}
	}
	if m.store != nil {
		if err := m.store.Touch(ctx, id, meta.Rows, meta.ParseStats.SkippedRows); err != nil {
			return Meta{}, err
		}
	}

	logger.L().Info().
		Str("session", id).
		Str("file", filename).
		Int("added", len(recs)).
		Int("rows", meta.Rows).
		Msg("session merged")
	return meta, nil
}

// Get returns a copy of the session header with its shared record
// slice. The second return is false for unknown ids.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// List returns every session's header, newest first.
func (m *Manager) List() []Meta {
	m.mu.RLock()
	out := make([]Meta, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.meta())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a session and all its persisted traces. Deleting an
// unknown id returns ErrNotFound.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.InvalidateSession(ctx, id); err != nil {
			return err
		}
	}
	if m.store != nil {
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	logger.L().Info().Str("session", id).Msg("session deleted")
	return nil
}

// SetUserMap attaches a display-name mapping to the session and
// returns how many entries it holds.
func (m *Manager) SetUserMap(id string, um usermap.Map) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	s.UserMap = um
	s.UpdatedAt = time.Now().UTC()
	return um.Len(), nil
}

// ingest reads one upload: hash the raw bytes, decompress if needed,
// parse and normalize.
func ingest(filename string, r io.Reader) (*records.Batch, []records.Record, string, error) {
	h := sha256.New()
	src := io.Reader(io.TeeReader(r, h))

	if strings.HasSuffix(strings.ToLower(filename), ".gz") {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, nil, "", fmt.Errorf("session: open gzip upload: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	batch, err := records.ReadCSV(src)
	if err != nil {
		return nil, nil, "", fmt.Errorf("session: parse upload: %w", err)
	}
	return batch, batch.Normalize(), hex.EncodeToString(h.Sum(nil)), nil
}

// chainHash folds a new upload digest into the session's content hash.
func chainHash(previous, digest string) string {
	h := sha256.New()
	h.Write([]byte(previous))
	h.Write([]byte(digest))
	return hex.EncodeToString(h.Sum(nil))
}
