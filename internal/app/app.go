// Package app wires the engine together: config, logger, journal,
// store, directory, presence, session controller, transport and the
// local HTTP gateway.
package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"chatcore/pkg/config"
	"chatcore/pkg/directory"
	"chatcore/pkg/logger"
	"chatcore/pkg/models"
	"chatcore/pkg/presence"
	"chatcore/pkg/session"
	"chatcore/pkg/state"
	"chatcore/pkg/store"
	"chatcore/pkg/transport"
)

// App encapsulates the engine components and their lifecycle.
type App struct {
	cfg     *config.Config
	version string

	jrnl     *store.Journal
	store    *store.Store
	presence *presence.Tracker
	dir      *directory.Directory
	ctrl     *session.Controller
	client   *transport.Client

	ready atomic.Bool
}

// New validates the config and builds every component that does not need
// a running context. Call Run to connect the transport, start schedulers
// and serve HTTP.
func New(cfg *config.Config, version string) (*App, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, version: version}

	if cfg.Journal.Enabled {
		if err := state.PrepareJournalDir(cfg.Journal.Path); err != nil {
			return nil, err
		}
		j, err := store.OpenJournal(cfg.Journal.Path, cfg.Journal.MaxValue.Int64())
		if err != nil {
			return nil, fmt.Errorf("open journal at %s: %w", cfg.Journal.Path, err)
		}
		a.jrnl = j
	}

	a.store = store.New(store.Config{UserID: cfg.Identity.UserID, Journal: a.jrnl})
	if err := a.store.LoadJournal(); err != nil {
		return nil, err
	}

	a.presence = presence.NewTracker()
	a.dir = directory.New(directory.Config{
		UserID:   cfg.Identity.UserID,
		Store:    a.store,
		Presence: a.presence,
	})
	a.dir.Attach()

	a.ctrl = session.New(session.Config{
		UserID:    cfg.Identity.UserID,
		Store:     a.store,
		Directory: a.dir,
	})

	return a, nil
}

// validateConfig fails fast on configs the engine cannot run with.
func validateConfig(cfg *config.Config) error {
	if cfg.Identity.UserID == "" {
		return fmt.Errorf("identity.user_id is required")
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	return nil
}

// Run connects the transport (when configured), starts the journal
// compaction scheduler and the HTTP gateway, then blocks until ctx is
// canceled or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Transport.URL != "" {
		client, err := transport.Dial(ctx, a.cfg.Transport.URL, a.ctrl, transport.Options{
			SendRPS:   a.cfg.Transport.SendRPS,
			SendBurst: a.cfg.Transport.SendBurst,
		})
		if err != nil {
			return fmt.Errorf("dial transport %s: %w", a.cfg.Transport.URL, err)
		}
		a.client = client
		a.ctrl.SetOutbound(client)
		defer client.Close()
	} else {
		logger.Warn("transport_not_configured")
	}

	if a.cfg.Journal.Compaction.Enabled {
		cancel, err := store.StartCompaction(ctx, a.jrnl, a.cfg.Journal.Compaction.Cron)
		if err != nil {
			return err
		}
		defer cancel()
	}

	a.printBanner()
	a.ready.Store(true)

	errCh := a.startHTTP(ctx)
	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// CurrentUser returns the identity the engine runs as.
func (a *App) CurrentUser() models.User {
	return models.User{
		ID:        a.cfg.Identity.UserID,
		Username:  a.cfg.Identity.Username,
		FirstName: a.cfg.Identity.FirstName,
		LastName:  a.cfg.Identity.LastName,
	}
}

func (a *App) shutdown() {
	a.ready.Store(false)
	if a.jrnl != nil {
		if err := a.jrnl.Close(); err != nil {
			logger.Error("journal_close_failed", "error", err)
		}
	}
}
