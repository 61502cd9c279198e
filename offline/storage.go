package offline

import (
	"database/sql"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	snapshot "github.com/pantherpay/pantherpay/pkg/response-snapshot"
)

// Storage is the cache storage the manager runs on. It mirrors the
// browser cache primitives: named namespaces of key/response entries.
// Correctness depends only on each call behaving atomically.
//
// Implementations must be thread-safe. Concurrent writes to the same
// key are last-writer-wins.
type Storage interface {
	// Open returns a handle to the named namespace.
	// The namespace becomes visible to Keys on its first write.
	Open(namespace string) (Namespace, error)
	// Delete removes a namespace and every entry in it.
	Delete(namespace string) error
	// Keys returns the names of all namespaces holding entries.
	Keys() ([]string, error)
}

// Namespace is one versioned bucket of cached responses.
type Namespace interface {
	// Put stores the response snapshot, overwriting any prior entry.
	Put(key string, snap *snapshot.Snapshot) error
	// Match returns the stored snapshot for the key, if present.
	Match(key string) (*snapshot.Snapshot, bool, error)
}

type MemStorage struct {
	mutex *sync.RWMutex
	db    map[string][]byte
}

// NewMemStorage creates a non-durable in-memory storage, used in tests.
func NewMemStorage() MemStorage {
	return MemStorage{
		mutex: &sync.RWMutex{},
		db:    make(map[string][]byte),
	}
}

// entries are keyed namespace-first so one flat map can serve
// both per-namespace matching and namespace enumeration
func memKey(namespace, key string) string {
	return namespace + "\t" + key
}

func (m MemStorage) Open(namespace string) (Namespace, error) {
	return memNamespace{storage: m, name: namespace}, nil
}

func (m MemStorage) Delete(namespace string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	prefix := memKey(namespace, "")
	for key := range m.db {
		if strings.HasPrefix(key, prefix) {
			delete(m.db, key)
		}
	}
	return nil
}

func (m MemStorage) Keys() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	seen := make(map[string]bool)
	names := make([]string, 0)
	for key := range m.db {
		name := strings.SplitN(key, "\t", 2)[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

type memNamespace struct {
	storage MemStorage
	name    string
}

func (n memNamespace) Put(key string, snap *snapshot.Snapshot) error {
	bytes, err := snap.Bytes()
	if err != nil {
		return err
	}
	n.storage.mutex.Lock()
	defer n.storage.mutex.Unlock()
	n.storage.db[memKey(n.name, key)] = bytes
	return nil
}

func (n memNamespace) Match(key string) (*snapshot.Snapshot, bool, error) {
	n.storage.mutex.RLock()
	bytes, ok := n.storage.db[memKey(n.name, key)]
	n.storage.mutex.RUnlock()
	if !ok {
		return nil, false, nil
	}
	snap, err := snapshot.FromBytes(bytes)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

type SQLiteStorage struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStorage creates a durable storage with the given filename as
// the db. If the file name is empty, a new in-memory db is opened.
func NewSQLiteStorage(filename string) SQLiteStorage {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS caches (
		namespace TEXT,
		key TEXT,
		bytes BLOB,
		PRIMARY KEY (namespace, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStorage{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteStorage) Open(namespace string) (Namespace, error) {
	return sqliteNamespace{storage: s, name: namespace}, nil
}

func (s SQLiteStorage) Delete(namespace string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM caches WHERE namespace = ?", namespace)
	return err
}

func (s SQLiteStorage) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT namespace FROM caches")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type sqliteNamespace struct {
	storage SQLiteStorage
	name    string
}

func (n sqliteNamespace) Put(key string, snap *snapshot.Snapshot) error {
	bytes, err := snap.Bytes()
	if err != nil {
		return err
	}
	n.storage.writeMutex.Lock()
	defer n.storage.writeMutex.Unlock()
	_, err = n.storage.db.Exec("INSERT OR REPLACE INTO caches (namespace, key, bytes) VALUES (?, ?, ?)",
		n.name, key, bytes)
	return err
}

func (n sqliteNamespace) Match(key string) (*snapshot.Snapshot, bool, error) {
	var bytes []byte
	err := n.storage.db.QueryRow("SELECT bytes FROM caches WHERE namespace = ? AND key = ?",
		n.name, key).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	snap, err := snapshot.FromBytes(bytes)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}
