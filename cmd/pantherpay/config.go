package main

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen     string        `yaml:"listen"`
	PublicDir  string        `yaml:"publicDir"`
	DataDir    string        `yaml:"dataDir"`
	SessionTTL time.Duration `yaml:"sessionTTL"`
	Offline    OfflineConfig `yaml:"offline"`
}

type OfflineConfig struct {
	Version    string   `yaml:"version"`
	CoreAssets []string `yaml:"coreAssets"`
}

func defaultConfig() Config {
	return Config{
		Listen:     ":3000",
		PublicDir:  "public",
		DataDir:    "data",
		SessionTTL: 24 * time.Hour,
		Offline: OfflineConfig{
			Version: "v1",
			CoreAssets: []string{
				"/",
				"/assets/css/main.css?v=2",
				"/assets/js/main.js?v=2",
				"/assets/js/pwa.js?v=1",
				"/manifest.webmanifest",
			},
		},
	}
}

func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	if filename == "" {
		return config, nil
	}
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// Secrets come from the environment (a .env file is loaded first when
// present), never from the config file.
type Secrets struct {
	SessionSecret  string `env:"SESSION_SECRET" envDefault:"secret"`
	APITokenSecret string `env:"API_TOKEN_SECRET" envDefault:"secret"`
	AdminEmail     string `env:"ADMIN_EMAIL"`
	AdminPassword  string `env:"ADMIN_PASSWORD"`
	Port           string `env:"PORT"`
}

func getSecrets() (Secrets, error) {
	return env.ParseAs[Secrets]()
}
