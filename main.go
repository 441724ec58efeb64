package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"dcp/server/async"
	"dcp/server/store"
)

func main() {
	cfg := Config{}

	flag.StringVar(&cfg.Addr, "addr", ":6697", "binary-framed listen address")
	flag.StringVar(&cfg.JSONAddr, "json-addr", "", "JSON-framed listen address (disabled if empty)")
	flag.StringVar(&cfg.UnixSocketPath, "unix-socket", "", "local admin IPC socket path (disabled if empty)")
	flag.StringVar(&cfg.ServerName, "server-name", "dcp", "server identity announced in bursts")
	flag.StringVar(&cfg.ServerPassword, "server-password", "", "optional server connect password")
	flag.BoolVar(&cfg.RegistrationAllowed, "allow-registration", true, "allow the register command")
	flag.DurationVar(&cfg.CertValidity, "cert-validity", 365*24*time.Hour, "self-signed certificate validity")
	flag.StringVar(&cfg.CertHostname, "cert-hostname", "", "certificate Common Name / SAN hostname")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.IntVar(&cfg.CacheSize, "cache-size", 4096, "max LRU target cache entries")
	flag.StringVar(&cfg.DBPath, "db", "dcp.sqlite3", "path to the SQLite database file")
	flag.IntVar(&cfg.StorageWorkers, "storage-workers", 4, "async storage worker pool size")
	flag.IntVar(&cfg.StoragePoolSize, "storage-pool-size", 4, "pooled storage handle count")
	flag.StringVar(&cfg.MOTD, "motd", "Welcome.", "message of the day text")
	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(cfg Config) error {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	seedDefaults(st, cfg)
	st.Close()

	storage, err := async.NewStorage(cfg.DBPath, cfg.StorageWorkers, cfg.StoragePoolSize)
	if err != nil {
		return err
	}
	defer storage.Close()

	cache, err := NewTargetCache(cfg.CacheSize)
	if err != nil {
		return err
	}

	tlsConfig, fingerprint, err := generateTLSConfig(cfg.CertValidity, cfg.CertHostname)
	if err != nil {
		return err
	}
	log.Printf("[main] certificate fingerprint: %s", fingerprint)

	srv := NewServer(cfg, storage, cache, tlsConfig)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return srv.Run(ctx)
}

// seedDefaults writes factory-default settings on first run, matching the
// convention the store already uses for the settings table.
func seedDefaults(st *store.Store, cfg Config) {
	if _, ok, err := st.GetSetting("server_name"); err == nil && !ok {
		if err := st.SetSetting("server_name", cfg.ServerName); err != nil {
			log.Printf("[store] seed server_name: %v", err)
		}
	}
}
