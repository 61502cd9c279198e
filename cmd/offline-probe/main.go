// Command offline-probe drives the offline cache manager against a
// running gateway: it installs and activates a cache version over real
// HTTP, then replays the core assets through fetch interception to
// verify they are served from the cache.
package main

import (
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/pantherpay/pantherpay/offline"
)

func main() {
	origin := flag.String("origin", "", "Base URL of the gateway to probe")
	configFilename := flag.String("config", "", "Gateway config file to take the cache version and assets from")
	version := flag.String("version", "v1", "Cache version tag")
	dbFilename := flag.String("db", "probe-cache.db", "Cache DB file name (use 'memory' for in-memory db)")
	assets := flag.String("assets", "/,/manifest.webmanifest", "Comma-separated core asset paths")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if *origin == "" {
		flag.Usage()
		os.Exit(1)
	}

	coreAssets := strings.Split(*assets, ",")
	if *configFilename != "" {
		offlineConfig, err := readOfflineConfig(*configFilename)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
		*version = offlineConfig.Version
		coreAssets = offlineConfig.CoreAssets
	}

	var storage offline.Storage
	if *dbFilename == "memory" {
		storage = offline.NewMemStorage()
	} else {
		storage = offline.NewSQLiteStorage(*dbFilename)
	}

	manager := offline.NewManager(offline.Config{
		Version:     *version,
		CoreAssets:  coreAssets,
		Storage:     storage,
		Fetcher:     offline.NetworkFetcher{Base: *origin},
		SkipWaiting: true,
	})

	if err := manager.Install(); err != nil {
		log.Fatal().Err(err).Msg("Install failed")
	}
	log.Info().Str("state", manager.State().String()).Msg("Cache version ready")

	for _, path := range coreAssets {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Bad probe path")
			continue
		}
		snap, err := manager.HandleFetch(req)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Fetch intercept failed")
			continue
		}
		log.Info().
			Str("path", path).
			Int("status", snap.StatusCode).
			Int("bytes", len(snap.Body)).
			Msg("Served through cache manager")
	}
}

type offlineConfig struct {
	Version    string   `yaml:"version"`
	CoreAssets []string `yaml:"coreAssets"`
}

// readOfflineConfig pulls the offline section out of the gateway
// config file, so probe runs match the deployed cache version.
func readOfflineConfig(filename string) (offlineConfig, error) {
	var config struct {
		Offline offlineConfig `yaml:"offline"`
	}
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config.Offline, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config.Offline, err
}
