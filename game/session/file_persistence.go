package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/service"
)

const recordExt = ".json"

// validID keeps session IDs usable as file names
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FilePersistence stores one Record per session as <dir>/<id>.json
type FilePersistence struct {
	dir        string
	configs    service.ConfigManager
	engineOpts []engine.Option
}

// NewFilePersistence creates the directory if needed. configs resolves rules
// for records that do not carry them; engineOpts apply to restored engines.
func NewFilePersistence(dir string, configs service.ConfigManager, engineOpts ...engine.Option) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FilePersistence{dir: dir, configs: configs, engineOpts: engineOpts}, nil
}

// Save writes the session record atomically
func (fp *FilePersistence) Save(s *service.Session) error {
	if s == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if !validID.MatchString(s.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, s.ID)
	}

	data, err := json.MarshalIndent(newRecord(s, fp.configIDFor(s)), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return writeAtomic(fp.path(s.ID), data)
}

// Load restores a session, rebuilding its engine from the stored rules
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	rec, err := fp.read(id)
	if err != nil {
		return nil, err
	}

	rules, err := fp.rulesFor(rec)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	eng, err := engine.NewEngine(rules, fp.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := eng.SetState(rec.GameState); err != nil {
		return nil, fmt.Errorf("session %s: failed to restore state: %w", id, err)
	}

	return &service.Session{
		ID:             rec.ID,
		Engine:         eng,
		Config:         rules,
		ConfigID:       rec.ConfigID,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
	}, nil
}

// Delete removes a session record
func (fp *FilePersistence) Delete(id string) error {
	if !validID.MatchString(id) {
		return ErrSessionNotFound
	}
	err := os.Remove(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove session %s: %w", id, err)
	}
	return nil
}

// ListAll returns the stored session IDs in sorted order
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), recordExt)
		if entry.IsDir() || !ok || !validID.MatchString(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether a record is stored for id
func (fp *FilePersistence) Exists(id string) bool {
	if !validID.MatchString(id) {
		return false
	}
	_, err := os.Stat(fp.path(id))
	return err == nil
}

func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.dir, strings.ToLower(id)+recordExt)
}

func (fp *FilePersistence) read(id string) (*Record, error) {
	if !validID.MatchString(id) {
		return nil, ErrSessionNotFound
	}
	data, err := os.ReadFile(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if err := rec.check(); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &rec, nil
}

// rulesFor prefers the rules stored in the record and falls back to the
// config manager, then to the built-in default when the names match.
func (fp *FilePersistence) rulesFor(rec *Record) (*engine.GameConfig, error) {
	if rec.Rules != nil {
		return rec.Rules, nil
	}
	rules, err := fp.configs.LoadConfig(rec.ConfigID)
	if err == nil {
		return rules, nil
	}
	if def := fp.configs.GetDefault(); def != nil && def.Name == rec.ConfigID {
		return def, nil
	}
	return nil, fmt.Errorf("failed to load config %q: %w", rec.ConfigID, err)
}

// configIDFor returns the session's config ID, looking it up by display
// name for sessions built outside the manager.
func (fp *FilePersistence) configIDFor(s *service.Session) string {
	if s.ConfigID != "" || s.Config == nil {
		return s.ConfigID
	}
	if infos, err := fp.configs.ListConfigs(); err == nil {
		for _, info := range infos {
			if info.Name == s.Config.Name {
				return info.ConfigID
			}
		}
	}
	return s.Config.Name
}

// writeAtomic writes next to path and renames so readers never see a
// partial record.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
