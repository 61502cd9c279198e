package main

import (
	"flag"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	pantherpay "github.com/pantherpay/pantherpay"
	"github.com/pantherpay/pantherpay/identity"
	"github.com/pantherpay/pantherpay/session"
	"github.com/pantherpay/pantherpay/settings"
)

var (
	configFilenameFlag string
	listenFlag         string
	publicDirFlag      string
	dataDirFlag        string
	verbosityTraceFlag bool
	logFilenameFlag    string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&listenFlag, "listen", "", "Address to listen on (overrides config)")
	flag.StringVar(&publicDirFlag, "public", "", "Directory with static assets (overrides config)")
	flag.StringVar(&dataDirFlag, "data", "", "Directory for SQLite databases (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter)

	// secrets live in the environment; a .env file is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}
	secrets, err := getSecrets()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse environment")
	}

	config, err := getConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read config file")
	}
	if listenFlag != "" {
		config.Listen = listenFlag
	}
	if secrets.Port != "" {
		config.Listen = ":" + secrets.Port
	}
	if publicDirFlag != "" {
		config.PublicDir = publicDirFlag
	}
	if dataDirFlag != "" {
		config.DataDir = dataDirFlag
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Could not create data directory")
	}
	appDB := filepath.Join(config.DataDir, "pantherpay.db")

	sessions := session.NewSQLiteStore(filepath.Join(config.DataDir, "sessions.db"))
	resolver := identity.NewSQLiteResolver(appDB)
	brandSettings := settings.NewStore(appDB, 30*time.Second)
	tokens := identity.NewTokenManager(secrets.APITokenSecret, time.Hour)

	var admin *identity.Identity
	if secrets.AdminEmail != "" {
		admin, err = resolver.EnsureUser(secrets.AdminEmail, "Admin", "admin")
		if err != nil {
			log.Fatal().Err(err).Msg("Could not seed admin user")
		}
	}

	routes := newRoutes(resolver, tokens, admin, secrets)

	gateway := pantherpay.CreateGateway(pantherpay.Config{
		Sessions:   sessions,
		Identity:   resolver,
		Settings:   brandSettings,
		Static:     os.DirFS(config.PublicDir),
		Secret:     secrets.SessionSecret,
		SessionTTL: config.SessionTTL,
		WebRoutes:  routes.web(),
		APIRoutes:  routes.api(),
	})

	log.Info().Str("listen", config.Listen).Msg("Panther Pay gateway running")
	if err := http.ListenAndServe(config.Listen, gateway); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
