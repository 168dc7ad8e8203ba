package cli

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/baseline/blob"
	"github.com/hazyhaar/baseline/fetchlog"
	"github.com/hazyhaar/baseline/internal/config"
	"github.com/hazyhaar/baseline/ledger"
	"github.com/hazyhaar/baseline/snapshot"

	_ "modernc.org/sqlite"
)

// stores bundles the persistence layer selected by the configuration.
type stores struct {
	backend   blob.Store
	snapshots *snapshot.Store
	ledger    *ledger.Store
	telemetry *fetchlog.Store
	closers   []func() error
}

func (a *app) openStores(withTelemetry bool) (*stores, error) {
	s := &stores{}
	switch a.cfg.Backend {
	case config.BackendSQLite:
		db, err := blob.OpenSQLite(a.cfg.BlobDB, a.cfg.SQLite.Options()...)
		if err != nil {
			return nil, err
		}
		s.backend = db
		s.closers = append(s.closers, db.Close)
	default:
		s.backend = blob.NewFS("")
	}

	s.snapshots = snapshot.New(s.backend, a.cfg.DataDir, snapshot.WithLogger(a.logger))
	s.ledger = ledger.New(s.backend, a.cfg.LedgerPath,
		ledger.WithDigest(a.cfg.Digest()), ledger.WithLogger(a.logger))

	if withTelemetry {
		tel, err := fetchlog.Open(a.cfg.TelemetryDB, a.cfg.SQLite.Options()...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		s.telemetry = tel
		s.closers = append(s.closers, tel.Close)
	}
	return s, nil
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}
