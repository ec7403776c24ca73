// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session persists research sessions and user preferences as flat
// JSON files: one {id}.json per session plus preferences.json. Every write
// replaces the whole record, so the last complete write wins.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

const preferencesFile = "preferences.json"

// Store keeps sessions in memory and mirrors every change to disk. All
// methods are safe for concurrent use; writes are serialized.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]types.Session
	prefs    map[string]any
}

// NewStore opens the store in dir, creating it if needed, and loads every
// session and the preferences. Records that fail to parse are skipped and
// logged.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating sessions directory: %w", types.ErrPersistence, err)
	}
	s := &Store{
		dir:      dir,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]types.Session),
		prefs:    make(map[string]any),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: reading sessions directory: %w", types.ErrPersistence, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || name == preferencesFile || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(s.dir, name)
		sess, err := readSession(path)
		if err != nil {
			s.logger.Warn("skipping unreadable session", zap.String("file", path), zap.Error(err))
			continue
		}
		s.sessions[sess.ID] = sess
	}

	data, err := os.ReadFile(filepath.Join(s.dir, preferencesFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.prefs); err != nil {
			s.logger.Warn("ignoring unreadable preferences", zap.Error(err))
			s.prefs = make(map[string]any)
		}
	case !errors.Is(err, os.ErrNotExist):
		s.logger.Warn("ignoring unreadable preferences", zap.Error(err))
	}

	s.logger.Debug("loaded sessions", zap.String("dir", s.dir), zap.Int("count", len(s.sessions)))
	return nil
}

func readSession(path string) (types.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Session{}, err
	}
	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return types.Session{}, err
	}
	if sess.ID == "" || sess.Query == "" {
		return types.Session{}, fmt.Errorf("missing id or query")
	}
	return sess, nil
}

// Create starts a new session for query. The session is held in memory
// until the first Save.
func (s *Store) Create(query string) *types.Session {
	now := s.now().UTC()
	return &types.Session{
		ID:        uuid.NewString(),
		Query:     query,
		Citations: []types.Citation{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SaveOption sets one field of a session being saved.
type SaveOption func(*types.Session)

// WithReport sets the session report.
func WithReport(r types.Report) SaveOption {
	return func(s *types.Session) { s.Report = &r }
}

// WithScores sets the session quality scores.
func WithScores(q types.QualityScores) SaveOption {
	return func(s *types.Session) { s.QualityScores = q }
}

// WithCitations sets the session citation list.
func WithCitations(cs []types.Citation) SaveOption {
	return func(s *types.Session) {
		s.Citations = append([]types.Citation(nil), cs...)
	}
}

// Save applies opts to sess, stamps UpdatedAt and writes the whole record.
// sess and the in-memory copy change only when the write succeeds.
func (s *Store) Save(sess *types.Session, opts ...SaveOption) error {
	if sess == nil || !validID(sess.ID) {
		return fmt.Errorf("%w: session has no usable id", types.ErrInvalidInput)
	}

	next := clone(*sess)
	for _, opt := range opts {
		opt(&next)
	}
	next.UpdatedAt = s.now().UTC()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = next.UpdatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.path(next.ID), next); err != nil {
		return fmt.Errorf("%w: writing session %s: %w", types.ErrPersistence, next.ID, err)
	}
	s.sessions[next.ID] = next
	*sess = clone(next)
	return nil
}

// Get returns the session with id. The boolean is false when it is unknown.
func (s *Store) Get(id string) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return types.Session{}, false
	}
	return clone(sess), true
}

// All returns every session, most recently created first.
func (s *Store) All() []types.Session {
	return s.ListRecent(0)
}

// ListRecent returns up to limit sessions, most recently created first.
// A non-positive limit returns all of them.
func (s *Store) ListRecent(limit int) []types.Session {
	s.mu.RLock()
	out := make([]types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, clone(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes the session and its file. It reports whether the session
// existed.
func (s *Store) Delete(id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: deleting session %s: %w", types.ErrPersistence, id, err)
	}
	delete(s.sessions, id)
	return true, nil
}

// SetPreference stores a preference and rewrites preferences.json.
func (s *Store) SetPreference(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]any, len(s.prefs)+1)
	for k, v := range s.prefs {
		next[k] = v
	}
	next[key] = value
	if err := writeJSON(filepath.Join(s.dir, preferencesFile), next); err != nil {
		return fmt.Errorf("%w: writing preferences: %w", types.ErrPersistence, err)
	}
	s.prefs = next
	return nil
}

// Preference returns the stored value for key.
func (s *Store) Preference(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.prefs[key]
	return v, ok
}

// Preferences returns a copy of all preferences.
func (s *Store) Preferences() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.prefs))
	for k, v := range s.prefs {
		out[k] = v
	}
	return out
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID rejects ids that would escape the sessions directory.
func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, ".") && filepath.Base(id) == id && id+".json" != preferencesFile
}

func clone(s types.Session) types.Session {
	if s.Report != nil {
		r := *s.Report
		r.CitedIDs = append([]string(nil), r.CitedIDs...)
		s.Report = &r
	}
	if s.QualityScores.Dimensions != nil {
		dims := make(map[string]float64, len(s.QualityScores.Dimensions))
		for k, v := range s.QualityScores.Dimensions {
			dims[k] = v
		}
		s.QualityScores.Dimensions = dims
	}
	s.Citations = append([]types.Citation(nil), s.Citations...)
	return s
}

// writeJSON writes v to path through a temporary file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
