// Package session persists per-identity browser session state across
// independent task runs.
//
// Two artifacts live under each identity directory:
//
//	storage_state.json   — the driver's own cookie/local-storage export,
//	                       round-tripped byte for byte, never reinterpreted.
//	session_storage.json — surf's own snapshot of sessionStorage, captured
//	                       by script evaluation because the driver's export
//	                       omits session-scoped storage.
//
// Both are overwritten (not merged) after each successful run with session
// persistence enabled. Every operation here is best effort: failures are
// logged and degrade to absence, they never fail the task.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/logging"
)

const (
	storageStateFile   = "storage_state.json"
	sessionStorageFile = "session_storage.json"
)

// Identity is the namespace session state and downloads are segregated
// under. Tasks without a customer share the default bucket.
type Identity string

// DefaultIdentity is the bucket for tasks with no customer id.
const DefaultIdentity Identity = "default"

// IdentityFor derives the identity for a customer id; zero maps to the
// default bucket.
func IdentityFor(customerID int) Identity {
	if customerID == 0 {
		return DefaultIdentity
	}
	return Identity(fmt.Sprintf("customer_%d", customerID))
}

// Snapshot is the session_storage.json wire format.
type Snapshot struct {
	Origin string            `json:"origin"`
	Data   map[string]string `json:"data"`
}

// Store reads and writes session state under a fixed root directory.
type Store struct {
	root   string
	logger *logging.Logger

	// Serializes state export per identity so concurrent tasks under the
	// same customer do not interleave writes to the same files. Task
	// execution itself is not serialized.
	mu    sync.Mutex
	locks map[Identity]*sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *logging.Logger) *Store {
	return &Store{
		root:   dir,
		logger: logger,
		locks:  make(map[Identity]*sync.Mutex),
	}
}

func (s *Store) identityLock(id Identity) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) identityDir(id Identity) string {
	return filepath.Join(s.root, string(id))
}

// StorageStatePath returns the path of the identity's storage-state export
// and whether it exists. Absence is the normal state for first-time
// identities, never an error.
func (s *Store) StorageStatePath(id Identity) (string, bool) {
	path := filepath.Join(s.identityDir(id), storageStateFile)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}

// sessionStoragePath returns the snapshot path for an identity.
func (s *Store) sessionStoragePath(id Identity) string {
	return filepath.Join(s.identityDir(id), sessionStorageFile)
}

// RestoreSessionStorage installs an origin-gated init script that replays
// the identity's sessionStorage snapshot into pages of the recorded origin.
//
// Must be called after the driver has started (the control channel has to
// exist) and before navigation begins, otherwise the injection has no
// effect. A missing snapshot or an empty data map is a no-op; a snapshot
// that cannot be read or parsed is logged as a warning and skipped.
func (s *Store) RestoreSessionStorage(drv browser.Driver, id Identity) {
	path := s.sessionStoragePath(id)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Infof("no sessionStorage snapshot for %s", id)
		} else {
			s.logger.Warnf("failed to read sessionStorage snapshot %s: %v", path, err)
		}
		return
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warnf("failed to parse sessionStorage snapshot %s: %v", path, err)
		return
	}
	if len(snap.Data) == 0 {
		s.logger.Infof("sessionStorage snapshot for %s contains no data", id)
		return
	}

	script, err := restoreScript(snap)
	if err != nil {
		s.logger.Warnf("failed to build sessionStorage restore script: %v", err)
		return
	}
	if err := drv.AddInitScript(script); err != nil {
		s.logger.Warnf("failed to install sessionStorage restore script: %v", err)
		return
	}

	s.logger.Infof("prepared sessionStorage restoration for origin %s (%d items)", snap.Origin, len(snap.Data))
}

// restoreScript builds the injection script. The origin gate is load-bearing:
// sessionStorage is strictly origin-scoped, so restoring under any other
// origin would corrupt an unrelated site's namespace. Mismatches skip
// restoration silently.
func restoreScript(snap Snapshot) (string, error) {
	originJSON, err := json.Marshal(snap.Origin)
	if err != nil {
		return "", err
	}
	dataJSON, err := json.Marshal(snap.Data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function() {
	if (window.location.origin === %s) {
		const storage = %s;
		for (const [key, value] of Object.entries(storage)) {
			window.sessionStorage.setItem(key, value);
		}
	}
})();`, originJSON, dataJSON), nil
}

// ExportStorageState writes the driver's storage-state export to the
// identity's path. The driver session must still be open. Failure is
// logged, never raised.
func (s *Store) ExportStorageState(drv browser.Driver, id Identity) {
	lock := s.identityLock(id)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.identityDir(id), storageStateFile)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		s.logger.Warnf("failed to create session directory for %s: %v", id, err)
		return
	}
	if err := drv.ExportStorageState(path); err != nil {
		s.logger.Warnf("failed to export storage state for %s: %v", id, err)
		return
	}
	s.logger.Infof("saved storage state for %s to %s", id, path)
}

// exportScript enumerates the current page's sessionStorage and serializes
// the snapshot wire format. Evaluation returns a JSON string so the result
// survives drivers that cannot marshal nested objects.
const exportScript = `() => {
	const data = {};
	for (let i = 0; i < sessionStorage.length; i++) {
		const key = sessionStorage.key(i);
		data[key] = sessionStorage.getItem(key);
	}
	return JSON.stringify({
		origin: window.location.origin,
		data: data
	});
}`

// ExportSessionStorage captures the active page's sessionStorage into the
// identity's snapshot file. With no active page this is a warning no-op.
func (s *Store) ExportSessionStorage(drv browser.Driver, id Identity) {
	lock := s.identityLock(id)
	lock.Lock()
	defer lock.Unlock()

	page, err := drv.CurrentPage()
	if err != nil {
		s.logger.Warnf("no active page to export sessionStorage from: %v", err)
		return
	}

	result, err := page.Evaluate(exportScript)
	if err != nil {
		s.logger.Warnf("sessionStorage export script failed: %v", err)
		return
	}

	var snap Snapshot
	switch v := result.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &snap); err != nil {
			s.logger.Warnf("failed to parse sessionStorage export: %v", err)
			return
		}
	case map[string]interface{}:
		// Some drivers unmarshal the result themselves.
		raw, err := json.Marshal(v)
		if err != nil {
			s.logger.Warnf("failed to re-encode sessionStorage export: %v", err)
			return
		}
		if err := json.Unmarshal(raw, &snap); err != nil {
			s.logger.Warnf("failed to parse sessionStorage export: %v", err)
			return
		}
	default:
		s.logger.Warnf("unexpected sessionStorage export type %T", result)
		return
	}

	path := s.sessionStoragePath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		s.logger.Warnf("failed to create session directory for %s: %v", id, err)
		return
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.logger.Warnf("failed to encode sessionStorage snapshot: %v", err)
		return
	}
	if err := os.WriteFile(path, encoded, 0600); err != nil {
		s.logger.Warnf("failed to write sessionStorage snapshot %s: %v", path, err)
		return
	}

	s.logger.Infof("exported %d sessionStorage items from %s", len(snap.Data), snap.Origin)
}
