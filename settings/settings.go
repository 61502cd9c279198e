// Package settings provides the branding and display settings read on
// every web request. Reads are cached for a short interval so the
// store tolerates per-request call frequency.
package settings

import (
	"database/sql"
	"strconv"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Settings is the branding snapshot injected into page locals.
type Settings struct {
	LogoURL        string
	HeaderImageURL string
	CurrencySymbol string
	CurrencyRate   float64
	Step1Title     string
	Step1Image     string
	Step2Title     string
	Step2Image     string
	Step3Title     string
	Step3Image     string
	Step4Title     string
	Step4Image     string
}

// Defaults returns the settings used when no override is stored.
func Defaults() Settings {
	return Settings{
		CurrencySymbol: "৳",
		CurrencyRate:   1,
		Step1Title:     "Free Fire TopUp",
		Step1Image:     "https://short-url.org/1gcBY",
		Step2Title:     "Level Up Pass",
		Step2Image:     "https://short-url.org/1gcD0",
		Step3Title:     "Weekly & Monthly",
		Step3Image:     "https://short-url.org/1gcDf",
		Step4Title:     "Weekly Lite",
		Step4Image:     "https://short-url.org/1gcDw",
	}
}

// Source provides the current settings snapshot.
type Source interface {
	Settings() (Settings, error)
}

// Static is a fixed Source, used in tests and as a fallback.
type Static Settings

func (s Static) Settings() (Settings, error) {
	return Settings(s), nil
}

// Store reads settings from a SQLite key/value table and caches
// the decoded snapshot for cacheFor.
type Store struct {
	db       *sql.DB
	cacheFor time.Duration

	mutex     sync.RWMutex
	cached    Settings
	refreshed time.Time
}

// NewStore opens the settings table in the given db file.
// If the file name is empty, a new in-memory db is opened.
func NewStore(filename string, cacheFor time.Duration) *Store {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT)")
	if err != nil {
		panic(err)
	}
	return &Store{db: db, cacheFor: cacheFor}
}

// Set stores one settings override and invalidates the cached snapshot.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	s.refreshed = time.Time{}
	s.mutex.Unlock()
	return nil
}

// Settings returns the current snapshot, reading from the database at
// most once per cache interval.
func (s *Store) Settings() (Settings, error) {
	s.mutex.RLock()
	if time.Since(s.refreshed) < s.cacheFor {
		cached := s.cached
		s.mutex.RUnlock()
		return cached, nil
	}
	s.mutex.RUnlock()

	loaded, err := s.load()
	if err != nil {
		return Defaults(), err
	}
	s.mutex.Lock()
	s.cached = loaded
	s.refreshed = time.Now()
	s.mutex.Unlock()
	return loaded, nil
}

func (s *Store) load() (Settings, error) {
	settings := Defaults()
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return settings, err
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, err
		}
		apply(&settings, key, value)
	}
	return settings, rows.Err()
}

func apply(s *Settings, key, value string) {
	switch key {
	case "logo_url":
		s.LogoURL = value
	case "header_image_url":
		s.HeaderImageURL = value
	case "currency_symbol":
		s.CurrencySymbol = value
	case "currency_rate":
		if rate, err := strconv.ParseFloat(value, 64); err == nil {
			s.CurrencyRate = rate
		}
	case "step1_title":
		s.Step1Title = value
	case "step1_image":
		s.Step1Image = value
	case "step2_title":
		s.Step2Title = value
	case "step2_image":
		s.Step2Image = value
	case "step3_title":
		s.Step3Title = value
	case "step3_image":
		s.Step3Image = value
	case "step4_title":
		s.Step4Title = value
	case "step4_image":
		s.Step4Image = value
	}
}
