package settings

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreReturnsDefaultsWhenEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.db"), time.Minute)
	got, err := store.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if got != Defaults() {
		t.Fatalf("settings %+v, expected defaults", got)
	}
}

func TestStoreOverridesAndInvalidates(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.db"), time.Minute)

	// prime the cache
	if _, err := store.Settings(); err != nil {
		t.Fatal(err)
	}

	if err := store.Set("currency_symbol", "$"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("currency_rate", "117.5"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("step1_title", "Diamond TopUp"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrencySymbol != "$" {
		t.Fatalf("currency symbol %q", got.CurrencySymbol)
	}
	if got.CurrencyRate != 117.5 {
		t.Fatalf("currency rate %v", got.CurrencyRate)
	}
	if got.Step1Title != "Diamond TopUp" {
		t.Fatalf("step1 title %q", got.Step1Title)
	}
	// untouched keys keep their defaults
	if got.Step2Title != Defaults().Step2Title {
		t.Fatalf("step2 title %q", got.Step2Title)
	}
}

func TestStoreIgnoresBadRate(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.db"), 0)
	if err := store.Set("currency_rate", "not-a-number"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrencyRate != Defaults().CurrencyRate {
		t.Fatalf("currency rate %v, expected default", got.CurrencyRate)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "settings.db")
	store := NewStore(file, time.Minute)
	if err := store.Set("logo_url", "/assets/img/logo.png"); err != nil {
		t.Fatal(err)
	}

	reopened := NewStore(file, time.Minute)
	got, err := reopened.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if got.LogoURL != "/assets/img/logo.png" {
		t.Fatalf("logo url %q after reopen", got.LogoURL)
	}
}

func TestStaticSource(t *testing.T) {
	fixed := Defaults()
	fixed.CurrencySymbol = "€"
	got, err := Static(fixed).Settings()
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrencySymbol != "€" {
		t.Fatalf("currency symbol %q", got.CurrencySymbol)
	}
}
