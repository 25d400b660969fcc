package audit

import (
	"errors"
	"fmt"
	"path/filepath"

	"favthanker/pkg/config"
	"favthanker/pkg/models"
)

// Writer is an append-only sink for audit records. Each call is durable
// before it returns.
type Writer interface {
	RecordShout(rec models.ShoutRecord) error
	RecordFavorite(rec models.FavoriteRecord) error
	Close() error
}

// Open builds the writer described by cfg
func Open(cfg config.AuditConfig) (Writer, error) {
	csvOpen := func() (Writer, error) {
		return NewCSVWriter(filepath.Join(cfg.Directory, cfg.ShoutFile), filepath.Join(cfg.Directory, cfg.FavoriteFile))
	}
	sqliteOpen := func() (Writer, error) {
		return NewSQLiteWriter(filepath.Join(cfg.Directory, cfg.Database))
	}

	switch cfg.Format {
	case "", "csv":
		return csvOpen()
	case "sqlite":
		return sqliteOpen()
	case "both":
		c, err := csvOpen()
		if err != nil {
			return nil, err
		}
		s, err := sqliteOpen()
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		return Multi(c, s), nil
	default:
		return nil, fmt.Errorf("unknown audit format %q", cfg.Format)
	}
}

type multi []Writer

// Multi fans records out to every writer; errors are joined
func Multi(writers ...Writer) Writer {
	return multi(writers)
}

func (m multi) RecordShout(rec models.ShoutRecord) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.RecordShout(rec))
	}
	return errors.Join(errs...)
}

func (m multi) RecordFavorite(rec models.FavoriteRecord) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.RecordFavorite(rec))
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Discard drops every record
var Discard Writer = discard{}

type discard struct{}

func (discard) RecordShout(models.ShoutRecord) error       { return nil }
func (discard) RecordFavorite(models.FavoriteRecord) error { return nil }
func (discard) Close() error                               { return nil }
