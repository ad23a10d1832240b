package bucket

import (
	"context"
	"fmt"
)

// Config selects and configures a bucket driver.
type Config struct {
	Driver Driver `mapstructure:"driver"`

	// Path is the SQLite file or Badger directory. An empty Badger path
	// opens an in-memory database.
	Path string `mapstructure:"path"`

	// PureGo selects modernc.org/sqlite for the sqlite driver.
	PureGo bool `mapstructure:"pure_go"`

	// DSN is the Postgres connection string.
	DSN string `mapstructure:"dsn"`

	S3 S3Config `mapstructure:"s3"`
}

// Open creates the bucket described by cfg. An empty driver means memory.
func Open(ctx context.Context, cfg Config) (Bucket, error) {
	var (
		b   Bucket
		err error
	)
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite bucket requires a path")
		}
		var opts []SQLiteOption
		if cfg.PureGo {
			opts = append(opts, WithPureGo())
		}
		var s *SQL
		s, err = OpenSQLite(ctx, cfg.Path, opts...)
		b = s
	case DriverPostgres:
		var s *SQL
		s, err = OpenPostgres(ctx, cfg.DSN)
		b = s
	case DriverBadger:
		var bd *Badger
		bd, err = OpenBadger(cfg.Path)
		b = bd
	case DriverS3:
		var s *S3
		s, err = OpenS3(ctx, cfg.S3)
		b = s
	default:
		return nil, fmt.Errorf("unknown bucket driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
