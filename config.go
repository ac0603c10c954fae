package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"task-api/storage"
)

const (
	backendFile   = "file"
	backendBadger = "badger"
	backendTable  = "table"
)

type config struct {
	Port            string
	Backend         string
	TasksFile       string
	BadgerPath      string
	BadgerSync      bool
	StorageConnStr  string
	TasksTable      string
	EventsQueue     string
	StrictLoad      bool
	RedisConnStr    string
	CacheTTL        time.Duration
	DeduperTTL      time.Duration
	ShutdownTimeout time.Duration
	Debug           bool
	LogFormat       string
}

type lookupFunc func(string) (string, bool)

func loadConfig(lookup lookupFunc) (config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := config{
		Port:           get("PORT", "3000"),
		Backend:        strings.ToLower(get("STORE_BACKEND", backendFile)),
		TasksFile:      get("TASKS_FILE", storage.DefaultTasksFile),
		BadgerPath:     get("BADGER_PATH", "data/badger"),
		StorageConnStr: get("STORAGE_CONNECTION_STRING", ""),
		TasksTable:     get("TASKS_TABLE", "tasks"),
		EventsQueue:    get("TASK_EVENTS_QUEUE", ""),
		RedisConnStr:   get("REDIS_CONNECTION_STRING", ""),
		LogFormat:      strings.ToLower(get("LOG_FORMAT", "text")),
	}

	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return config{}, fmt.Errorf("invalid PORT %q", cfg.Port)
	}

	var err error
	if cfg.BadgerSync, err = parseBool(get("BADGER_SYNC_WRITES", "true")); err != nil {
		return config{}, fmt.Errorf("invalid BADGER_SYNC_WRITES: %w", err)
	}
	if cfg.StrictLoad, err = parseBool(get("STRICT_LOAD", "false")); err != nil {
		return config{}, fmt.Errorf("invalid STRICT_LOAD: %w", err)
	}
	if cfg.Debug, err = parseBool(get("DEBUG", "false")); err != nil {
		return config{}, fmt.Errorf("invalid DEBUG: %w", err)
	}
	if cfg.CacheTTL, err = parseDuration(get("CACHE_TTL", "30s"), true); err != nil {
		return config{}, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.DeduperTTL, err = parseDuration(get("DEDUPER_TTL", "24h"), false); err != nil {
		return config{}, fmt.Errorf("invalid DEDUPER_TTL: %w", err)
	}
	if cfg.ShutdownTimeout, err = parseDuration(get("SHUTDOWN_TIMEOUT", "10s"), false); err != nil {
		return config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	switch cfg.Backend {
	case backendFile, backendBadger:
	case backendTable:
		if cfg.StorageConnStr == "" {
			return config{}, fmt.Errorf("STORE_BACKEND=table requires STORAGE_CONNECTION_STRING")
		}
	default:
		return config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}
	if cfg.EventsQueue != "" && cfg.StorageConnStr == "" {
		return config{}, fmt.Errorf("TASK_EVENTS_QUEUE requires STORAGE_CONNECTION_STRING")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return config{}, fmt.Errorf("unknown LOG_FORMAT %q", cfg.LogFormat)
	}

	return cfg, nil
}

func (c config) listenAddr() string {
	return ":" + c.Port
}

func parseBool(v string) (bool, error) {
	return strconv.ParseBool(v)
}

func parseDuration(v string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("must be greater than zero")
	}
	return d, nil
}

// parseRedisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
