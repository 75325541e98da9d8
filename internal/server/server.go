// Package server wires the development server together: file watching,
// rebuild coordination, content caching, chunk serving, and live
// reload, behind one http.Server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/malezjaa/palladin/internal/cache"
	"github.com/malezjaa/palladin/internal/chunks"
	"github.com/malezjaa/palladin/internal/config"
	"github.com/malezjaa/palladin/internal/engine"
	"github.com/malezjaa/palladin/internal/hmr"
	"github.com/malezjaa/palladin/internal/logging"
	"github.com/malezjaa/palladin/internal/rebuild"
	"github.com/malezjaa/palladin/internal/watcher"
)

// DevServer serves project files with transform-on-demand and pushes
// live-reload messages to connected browsers.
type DevServer struct {
	config      *config.Config
	serveCtx    *ServeContext
	engine      engine.TransformEngine
	cache       *cache.ContentCache
	chunks      *chunks.Store
	coordinator *rebuild.Coordinator
	broadcaster *hmr.Broadcaster
	watcher     *watcher.FileWatcher
	logger      logging.Logger

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
	shutdownErr  error
}

// New assembles a development server from cfg. The transform engine
// defaults to the configured bundler command; pass eng to override
// (tests do).
func New(cfg *config.Config, logger logging.Logger, eng engine.TransformEngine) (*DevServer, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	serveCtx, err := NewServeContext(cfg.Build.Root, cfg.Build.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare serve directories: %w", err)
	}

	if eng == nil {
		eng = engine.NewCommandEngine(cfg.Build.Command, serveCtx.Root(), serveCtx.BuildDir(), logger)
	}

	contentCache := cache.New(eng, logger)
	chunkStore := chunks.NewStore()
	coordinator := rebuild.New(eng, contentCache, chunkStore, cfg.Build.Entrypoint, logger)
	broadcaster := hmr.NewBroadcaster(logger)

	fileWatcher, err := watcher.New(watcher.NewChangeFilter(), cfg.Watch.QuietPeriod, cfg.Watch.MaxDelay, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// The bundler writes into the build dir; watching it would make
	// every build trigger another build.
	if err := fileWatcher.Filter().AddIgnoredPath(serveCtx.BuildDir()); err != nil {
		return nil, fmt.Errorf("failed to ignore build dir: %w", err)
	}
	for _, ignored := range cfg.Watch.IgnorePaths {
		if !filepath.IsAbs(ignored) {
			ignored = filepath.Join(serveCtx.Root(), ignored)
		}
		if err := fileWatcher.Filter().AddIgnoredPath(ignored); err != nil {
			logger.Warn(context.Background(), err, "skipping ignore path", "path", ignored)
		}
	}
	for _, ext := range cfg.Watch.Extensions {
		fileWatcher.Filter().AddExtension(ext)
	}

	s := &DevServer{
		config:      cfg,
		serveCtx:    serveCtx,
		engine:      eng,
		cache:       contentCache,
		chunks:      chunkStore,
		coordinator: coordinator,
		broadcaster: broadcaster,
		watcher:     fileWatcher,
		logger:      logger.WithComponent("server"),
	}
	fileWatcher.AddHandler(s.handleFileChange)

	return s, nil
}

// Start runs the initial build, begins watching, and serves HTTP until
// ctx is cancelled or the listener fails.
func (s *DevServer) Start(ctx context.Context) error {
	if err := s.initialBuild(ctx); err != nil {
		// A broken tree on startup is survivable: the next save
		// triggers a rebuild.
		s.logger.Error(ctx, err, "initial build failed")
	}

	if err := s.watcher.Watch(s.serveCtx.Root()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.serveCtx.Root(), err)
	}

	addr := s.config.Server.Address()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
		IdleTimeout:  60 * time.Second,
	}
	s.serverMutex.Lock()
	s.httpServer = httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "development server listening",
		"address", addr,
		"root", s.serveCtx.Root(),
	)

	if s.config.Server.Open {
		go s.openBrowser(fmt.Sprintf("http://%s", addr))
	}

	// Listener and watcher run as one group: either one failing takes
	// the context down and the shutdown goroutine unwinds the rest.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.watcher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *DevServer) initialBuild(ctx context.Context) error {
	result, err := s.engine.Build(ctx, s.config.Build.Entrypoint)
	if err != nil {
		return err
	}
	generation := make(map[string][]byte, len(result.Assets))
	for _, asset := range result.Assets {
		generation[asset.Name] = asset.Content
	}
	s.chunks.ReplaceGeneration(generation)
	s.logger.Info(ctx, "initial build finished", "chunks", len(generation))
	return nil
}

// handleFileChange is invoked by the watcher with debounced batches.
func (s *DevServer) handleFileChange(events []watcher.ChangeEvent) error {
	ctx := context.Background()
	results := s.coordinator.Rebuild(ctx, events)

	for _, result := range results {
		if result.Err != nil {
			// Browsers keep the last good state; nothing to push.
			continue
		}
		if result.FullReload {
			s.broadcaster.Broadcast(ctx, hmr.FullReload())
			continue
		}

		updates := make([]hmr.Update, 0, len(result.Changed))
		ts := result.Timestamp.UnixMilli()
		for _, path := range result.Changed {
			rel, ok := s.serveCtx.RelativePath(path)
			if !ok {
				continue
			}
			updates = append(updates, hmr.Update{Path: rel, Timestamp: ts})
		}
		if len(updates) == 0 {
			continue
		}
		s.broadcaster.Broadcast(ctx, hmr.UpdatesFor(updates))
	}
	return nil
}

// Shutdown stops the watcher, disconnects subscribers, waits for an
// in-flight build, and closes the HTTP listener. Safe to call more
// than once; later calls return the first result.
func (s *DevServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "watcher stop")
		}
		s.broadcaster.Close()
		if err := s.engine.Close(); err != nil {
			s.logger.Warn(ctx, err, "engine close")
		}

		s.serverMutex.RLock()
		httpServer := s.httpServer
		s.serverMutex.RUnlock()
		if httpServer != nil {
			s.shutdownErr = httpServer.Shutdown(ctx)
		}
	})
	return s.shutdownErr
}

func (s *DevServer) openBrowser(url string) {
	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		s.logger.Warn(context.Background(), err, "could not open browser", "url", url)
	}
}
