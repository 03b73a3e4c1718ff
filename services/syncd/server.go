// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syncd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/beadsync/services/syncd/config"
	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/notify"
	"github.com/AleutianAI/beadsync/services/syncd/pushhub"
	"github.com/AleutianAI/beadsync/services/syncd/refresh"
	"github.com/AleutianAI/beadsync/services/syncd/relay"
	"github.com/AleutianAI/beadsync/services/syncd/store"
	"github.com/AleutianAI/beadsync/services/syncd/workspace"
)

// Server is the assembled sync daemon.
type Server struct {
	cfg config.Config
	log *slog.Logger

	store     store.Store
	notifier  *notify.Notifier
	relay     *relay.Relay
	registry  *workspace.Registry
	state     *workspace.State
	hub       *pushhub.Hub
	scheduler *refresh.Scheduler
	watcher   *notify.Watcher

	engine    *gin.Engine
	unsub     func()
	closeOnce sync.Once
}

// ServerOptions tunes server construction beyond the config file.
type ServerOptions struct {
	Logger *slog.Logger

	// UserName is stamped on comments and deletions; typically the local
	// git user.
	UserName string

	// Workspace is the project directory this daemon serves.
	Workspace string

	// DisableWatcher skips the filesystem watcher, for tests.
	DisableWatcher bool
}

// NewServer wires every component of the daemon. Call Run to serve and
// Close to release resources.
func NewServer(cfg config.Config, opts ServerOptions) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	st, err := openStore(cfg.Store, log)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewNotifier(log)

	rel, err := relay.Open(cfg.Relay.StorePath, notifier, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registry, err := workspace.OpenRegistry(cfg.Relay.RegistryPath, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	state := &workspace.State{}
	if opts.Workspace != "" {
		ws := state.Init(opts.Workspace, "")
		if err := registry.Register(ws); err != nil {
			log.Warn("failed to register the boot workspace", "error", err)
		}
	}

	hub := pushhub.NewHub(pushhub.HubConfig{
		Store:    st,
		Notifier: notifier,
		Logger:   log,
		UserName: opts.UserName,
	})

	scheduler := refresh.NewScheduler(st, hub, refresh.Options{
		Debounce:  cfg.Refresh.Debounce(),
		Heartbeat: cfg.Refresh.Heartbeat(),
		Logger:    log,
	})
	hub.SetRefresher(scheduler)

	srv := &Server{
		cfg:       cfg,
		log:       log,
		store:     st,
		notifier:  notifier,
		relay:     rel,
		registry:  registry,
		state:     state,
		hub:       hub,
		scheduler: scheduler,
	}

	// Every change signal feeds the scheduler; clients additionally get the
	// tagged event so they can react without waiting for the snapshot.
	// Relay merge winners are absorbed into the record store first, so the
	// pass the signal triggers already sees them.
	srv.unsub = notifier.Subscribe(func(ev notify.Event) {
		if ev.Type == notify.EventRecordsSynced {
			srv.absorbSynced(ev)
		}
		scheduler.ScheduleRefresh()
		hub.BroadcastEvent(ev)
	})

	if !opts.DisableWatcher {
		watched := []string{cfg.Relay.StorePath, cfg.Relay.RegistryPath}
		w, err := notify.NewWatcher(notifier, watched, notify.WatcherOptions{Logger: log})
		if err != nil {
			log.Warn("filesystem watcher unavailable", "error", err)
		} else {
			srv.watcher = w
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handlers := NewHandlers(rel, registry, state, log)
	RegisterRoutes(engine, handlers, hub, cfg.Server.Token)
	srv.engine = engine

	return srv, nil
}

func openStore(cfg config.StoreConfig, log *slog.Logger) (store.Store, error) {
	if cfg.InMemory && cfg.Path == "" {
		return store.NewMemStore(), nil
	}
	bs, err := store.OpenBadger(store.BadgerConfig{
		Path:     cfg.Path,
		InMemory: cfg.InMemory,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open the issue store: %w", err)
	}
	return bs, nil
}

// absorbSynced writes the winners of a relay merge into the record store,
// so relay-synced records appear in subscription snapshots. Their
// timestamps arrive already stamped and Put preserves them.
func (s *Server) absorbSynced(ev notify.Event) {
	data, ok := ev.Data.(notify.SyncedData)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, batch := range [][]domain.SyncRecord{data.Created, data.Updated} {
		for _, rec := range batch {
			if err := s.store.Put(ctx, rec.Issue); err != nil {
				s.log.Error("failed to absorb a synced record", "id", rec.ID, "error", err)
			}
		}
	}
}

// Engine exposes the router, for tests that drive the HTTP surface
// directly.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("sync daemon listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.scheduler.RunHeartbeat(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	return err
}

// Close releases every resource. Idempotent; Run calls it on exit, and
// callers may defer it as well.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		s.scheduler.Stop()
		s.hub.Close()
		if err := s.store.Close(); err != nil {
			s.log.Error("failed to close the issue store", "error", err)
		}
	})
}
