package session

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Store persists sessions between requests.
// The SQLite implementation survives process restarts; losing the
// store logs every active user out but is otherwise harmless.
//
// Implementations must be thread-safe. Concurrent writes to the same
// session are last-writer-wins.
type Store interface {
	// Load returns the session for the given id.
	// It returns ErrNotFound for missing or expired sessions.
	Load(id string) (*Session, error)
	// Save stores the session, overwriting any previous record.
	Save(s *Session) error
	// Delete removes the session. Deleting a missing session is a no-op.
	Delete(id string) error
}

type MemStore struct {
	mutex *sync.RWMutex
	db    map[string]*Session
}

// NewMemStore creates a non-durable in-memory store, used in tests.
func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]*Session),
	}
}

func (m MemStore) Load(id string) (*Session, error) {
	m.mutex.RLock()
	s, ok := m.db[id]
	m.mutex.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired() {
		m.Delete(id)
		return nil, ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m MemStore) Save(s *Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	clone := *s
	m.db[s.ID] = &clone
	return nil
}

func (m MemStore) Delete(id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, id)
	return nil
}

type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a durable store with the given filename as the db.
// If the file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) SQLiteStore {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		expires INTEGER,
		data BLOB
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS sessions_expires_idx ON sessions (expires)")
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteStore) Load(id string) (*Session, error) {
	var expires int64
	var data []byte
	err := s.db.QueryRow("SELECT expires, data FROM sessions WHERE id = ?", id).Scan(&expires, &data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(time.Unix(expires, 0)) {
		s.Delete(id)
		return nil, ErrNotFound
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s SQLiteStore) Save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.Exec("INSERT OR REPLACE INTO sessions (id, expires, data) VALUES (?, ?, ?)",
		sess.ID, sess.ExpiresAt.Unix(), data)
	return err
}

func (s SQLiteStore) Delete(id string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}
