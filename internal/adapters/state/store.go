// Package state implements the persistent runtime-state store described
// in spec.md §4.4: a single JSON document, atomically replaced, with a
// rotation of backups.
package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

const fileName = "runtime_state.json"

// Store implements ports.StateStore against a flat file on disk.
type Store struct {
	dir string
	log *slog.Logger
}

// New returns a Store rooted at dir. dir is created if missing.
func New(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, log: log.With("component", "state")}, nil
}

func (s *Store) path() string           { return filepath.Join(s.dir, fileName) }
func (s *Store) bakPath(n int) string    { return filepath.Join(s.dir, bakName(n)) }
func bakName(n int) string               { return fileName[:len(fileName)-len(".json")] + bakSuffix(n) + ".json" }
func bakSuffix(n int) string             { return ".bak" + string(rune('0'+n)) }

// Load returns the persisted document, or a fresh empty one on any read
// or parse failure — corruption never propagates to the caller (spec.md
// §4.4, §7).
func (s *Store) Load() *domain.RuntimeState {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return domain.NewRuntimeState()
	}
	var st domain.RuntimeState
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn("state_load_corrupt_fallback", "err", err)
		return domain.NewRuntimeState()
	}
	if st.AboveSince == nil {
		st.AboveSince = map[string]int64{}
	}
	if st.BelowSince == nil {
		st.BelowSince = map[string]int64{}
	}
	if st.MissingSince == nil {
		st.MissingSince = map[string]int64{}
	}
	if st.Cooldowns == nil {
		st.Cooldowns = map[string]int64{}
	}
	if st.OpenedAtMs == nil {
		st.OpenedAtMs = map[string]int64{}
	}
	return &st
}

// Save atomically replaces the document: write to a temp sibling, rotate
// .bak1->.bak2->.bak3 (dropping the old .bak3), rename the previous file
// into .bak1, then rename the temp file over the target. Permissions are
// restricted to owner read/write.
func (s *Store) Save(st *domain.RuntimeState) error {
	st.Health.SavedAtMs = time.Now().UnixMilli()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	target := s.path()
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	s.rotateBackups()

	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, s.bakPath(1)); err != nil {
			s.log.Warn("state_backup_rotate_failed", "err", err)
		}
	}

	if err := os.Rename(tmp, target); err != nil {
		return err
	}
	return os.Chmod(target, 0o600)
}

// rotateBackups shifts .bak2->.bak3 then .bak1->.bak2, dropping the
// oldest .bak3 generation, before the current file is rotated into
// .bak1 by the caller.
func (s *Store) rotateBackups() {
	if _, err := os.Stat(s.bakPath(2)); err == nil {
		_ = os.Rename(s.bakPath(2), s.bakPath(3))
	}
	if _, err := os.Stat(s.bakPath(1)); err == nil {
		_ = os.Rename(s.bakPath(1), s.bakPath(2))
	}
}
