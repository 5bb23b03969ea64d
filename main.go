package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"fairplay/api"
	"fairplay/backgammon"
	"fairplay/config"
	"fairplay/db"
	"fairplay/entropy"
	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/state"
	"fairplay/ws"
)

func main() {
	if config.LoadDotEnv() {
		log.Info("Loaded environment variables from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	setupLogging(cfg.LogLevel)

	ctx := context.Background()

	// Entropy source
	eth, err := entropy.DialEthereum(ctx, cfg.RPCURL)
	if err != nil {
		log.WithError(err).Fatal("Cannot reach entropy source")
	}
	defer eth.Close()
	source := entropy.WithTimeout(eth, cfg.EntropyTimeout)

	// Storage
	sessions, records, closeStores := openStores(ctx, cfg)
	defer closeStores()

	hub := ws.NewHub()
	protocol := fairness.NewProtocol(source, sessions, fairness.WithNotifier(hub))
	server := api.NewServer(protocol, records, source, backgammon.RaceOracle, hub)

	httpSvr := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(cfg.AllowOrigins),
		ReadTimeout:  config.HTTPReadTimeout,
		WriteTimeout: config.HTTPWriteTimeout,
	}

	go func() {
		log.WithFields(log.Fields{
			"addr":  cfg.ListenAddr,
			"store": cfg.StoreBackend,
			"games": replay.Games(),
		}).Info("Fairplay server listening")
		if err := httpSvr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Httpserver: ListenAndServe()")
		}
	}()

	<-setupCloseChannel()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, config.HTTPShutdownTimeout)
	defer cancel()
	if err := httpSvr.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Httpserver: Shutdown()")
	}
}

// openStores picks the session store from STORE_BACKEND. Game records go to
// PostgreSQL when DATABASE_URL is set, otherwise next to the sessions.
func openStores(ctx context.Context, cfg config.Config) (fairness.SessionStore, replay.RecordStore, func()) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		sessions fairness.SessionStore
		records  replay.RecordStore
	)
	switch cfg.StoreBackend {
	case config.BackendBolt:
		bs, err := db.OpenBolt(cfg.BoltPath)
		if err != nil {
			log.WithError(err).Fatal("Cannot open bolt database")
		}
		closers = append(closers, func() { bs.Close() })
		sessions, records = bs, bs

	case config.BackendRedis:
		rs, err := db.InitRedis(ctx, db.RedisOptions{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.WithError(err).Fatal("Cannot connect to Redis")
		}
		closers = append(closers, func() { rs.Close() })
		sessions = rs
		records = state.NewStore()

	default:
		mem := state.NewStore()
		sessions, records = mem, mem
	}

	if cfg.DatabaseURL != "" {
		pg, err := db.InitPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("PostgreSQL initialization failed, game records stay local")
		} else {
			closers = append(closers, pg.Close)
			records = pg
		}
	}
	return sessions, records, closeAll
}

func setupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:  true,
		DisableSorting: true,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func setupCloseChannel() chan interface{} {
	signalChan := make(chan os.Signal, 1)
	closingChan := make(chan interface{}, 1)

	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalChan
		close(closingChan)
	}()

	return closingChan
}
