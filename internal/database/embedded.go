package database

import (
	"fmt"
	"path/filepath"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/rs/zerolog"
)

// EmbeddedOptions configures a local Postgres for development and tests.
type EmbeddedOptions struct {
	Port     uint32
	Dir      string // data and runtime files live under here; empty uses a temp dir
	Database string
	Username string
	Password string
	Log      zerolog.Logger
}

// Embedded is a Postgres server run as a child process.
type Embedded struct {
	pg   *embeddedpostgres.EmbeddedPostgres
	opts EmbeddedOptions
}

// StartEmbedded downloads (once) and starts a Postgres server. Call Stop on shutdown.
func StartEmbedded(opts EmbeddedOptions) (*Embedded, error) {
	if opts.Port == 0 {
		opts.Port = 5433
	}
	if opts.Database == "" {
		opts.Database = "mockprep"
	}
	if opts.Username == "" {
		opts.Username = "mockprep"
	}
	if opts.Password == "" {
		opts.Password = "mockprep"
	}

	cfg := embeddedpostgres.DefaultConfig().
		Port(opts.Port).
		Database(opts.Database).
		Username(opts.Username).
		Password(opts.Password).
		Logger(opts.Log)
	if opts.Dir != "" {
		cfg = cfg.
			DataPath(filepath.Join(opts.Dir, "data")).
			RuntimePath(filepath.Join(opts.Dir, "runtime")).
			BinariesPath(filepath.Join(opts.Dir, "bin"))
	}

	pg := embeddedpostgres.NewDatabase(cfg)
	if err := pg.Start(); err != nil {
		return nil, fmt.Errorf("start embedded postgres: %w", err)
	}

	opts.Log.Info().Uint32("port", opts.Port).Str("dir", opts.Dir).Msg("embedded postgres started")
	return &Embedded{pg: pg, opts: opts}, nil
}

// URL is the connection string for the embedded server.
func (e *Embedded) URL() string {
	return fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		e.opts.Username, e.opts.Password, e.opts.Port, e.opts.Database)
}

// Stop shuts the server down.
func (e *Embedded) Stop() error {
	return e.pg.Stop()
}
