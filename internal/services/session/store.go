package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// envelope wraps the opaque session blob with the write timestamp used for
// TTL checks.
type envelope struct {
	Engine    string          `json:"engine"`
	Account   string          `json:"account"`
	WrittenAt time.Time       `json:"written_at"`
	State     json.RawMessage `json:"state"`
}

// Store persists per-(engine, account) browser state as JSON files. Writes go
// through a temp file and an atomic rename so readers never see a partial blob.
type Store struct {
	dir    string
	ttl    time.Duration
	logger arbor.ILogger
}

// NewStore creates the session directory if needed
func NewStore(dir string, ttl time.Duration, logger arbor.ILogger) (interfaces.SessionStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Load returns the stored blob, or nil when no session exists or the stored
// one is older than the TTL. Stale files are removed on read.
func (s *Store) Load(engine models.Engine, account string) ([]byte, error) {
	path := common.SessionPath(s.dir, string(engine), account)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn().Str("engine", string(engine)).Msg("Discarding unreadable session file")
		_ = os.Remove(path)
		return nil, nil
	}

	if time.Since(env.WrittenAt) > s.ttl {
		s.logger.Debug().
			Str("engine", string(engine)).
			Str("account", account).
			Msg("Session expired, removing")
		_ = os.Remove(path)
		return nil, nil
	}

	return env.State, nil
}

// Save writes the blob atomically, refreshing the TTL clock
func (s *Store) Save(engine models.Engine, account string, blob []byte) error {
	env := envelope{
		Engine:    string(engine),
		Account:   account,
		WrittenAt: time.Now(),
		State:     blob,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	path := common.SessionPath(s.dir, string(engine), account)
	tmp := filepath.Join(s.dir, ".tmp-"+uuid.New().String())

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit session file: %w", err)
	}
	return nil
}

// Clear removes the stored session if present
func (s *Store) Clear(engine models.Engine, account string) error {
	path := common.SessionPath(s.dir, string(engine), account)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
