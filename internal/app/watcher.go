package app

import (
	"context"
	"fmt"
	"time"

	"github.com/wallwatch/wallwatch/internal/config"
	"github.com/wallwatch/wallwatch/internal/download"
	"github.com/wallwatch/wallwatch/internal/engine"
	"github.com/wallwatch/wallwatch/internal/ledger"
	"github.com/wallwatch/wallwatch/internal/logger"
	"github.com/wallwatch/wallwatch/pkg/httpclient"
	"github.com/wallwatch/wallwatch/pkg/publishers"
	"github.com/wallwatch/wallwatch/pkg/sources"
	"github.com/wallwatch/wallwatch/pkg/wallconfig"
)

// Watcher is the wallpaper watcher runtime. It owns the poll loop and wires
// the profile, the reddit fetcher, the seen ledger, the downloader, and the
// delivery publishers together.
type Watcher struct {
	cfg     *config.Config
	profile *wallconfig.Profile
	engine  *engine.Service
	fanout  *publishers.Fanout
	seen    ledger.Ledger
}

// objLogger adapts the package logger to the publishers logging surface.
type objLogger struct{}

func (objLogger) InfoObj(msg, key string, obj interface{})  { logger.InfoObj(msg, key, obj) }
func (objLogger) DebugObj(msg, key string, obj interface{}) { logger.DebugObj(msg, key, obj) }
func (objLogger) WarnObj(msg, key string, obj interface{})  { logger.WarnObj(msg, key, obj) }
func (objLogger) ErrorObj(msg, key string, obj interface{}) { logger.ErrorObj(msg, key, obj) }

// NewWatcher builds the watcher runtime from config files.
func NewWatcher(ctx context.Context, cfg *config.Config) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := objLogger{}

	profile, err := wallconfig.Load(cfg.ProfileFile)
	if err != nil {
		return nil, fmt.Errorf("load watch profile: %w", err)
	}
	sourceNames := make([]string, 0, len(profile.Sources()))
	for _, src := range profile.Sources() {
		sourceNames = append(sourceNames, src.Name)
	}
	logger.InfoObj("watch profile loaded", "profile_meta", map[string]any{
		"sources":         sourceNames,
		"targets":         len(profile.Targets()),
		"max_downloads":   profile.MaxDownloads,
		"update_interval": profile.UpdateInterval.String(),
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	seen, err := ledger.New(cfg.LedgerType, cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("init seen ledger: %w", err)
	}
	logger.InfoObj("seen ledger initialized", "ledger_config", map[string]any{
		"type": cfg.LedgerType,
		"path": cfg.LedgerPath,
	})

	fetcher, err := sources.NewRedditFetcher(sources.Options{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
		Timeout:      time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
	})
	if err != nil {
		closeLedger(seen)
		return nil, fmt.Errorf("init reddit fetcher: %w", err)
	}

	downloader := download.New(
		httpclient.NewRestyClient(time.Duration(cfg.DownloadTimeoutSeconds)*time.Second),
		download.DefaultMaxBytes,
	)

	return &Watcher{
		cfg:     cfg,
		profile: profile,
		engine:  engine.NewService(profile, fetcher, seen, downloader, fanout),
		fanout:  fanout,
		seen:    seen,
	}, nil
}

// buildFanout assembles the delivery publishers. Without a publishers file
// delivery events only go to the log.
func buildFanout(ctx context.Context, cfg *config.Config, log publishers.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		return publishers.NewFanout([]publishers.Publisher{
			publishers.NewLogPublisher("delivery-log", log),
		}), nil
	}

	reg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("publishers file %s has no enabled publishers", cfg.PublishersFile)
	}

	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	logger.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	return publishers.NewFanout(pubs), nil
}

// Run starts the poll loop until the context is cancelled. Cycles run
// strictly one at a time: the first immediately, the rest on a fixed ticker.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.engine == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.closeLedger()

	logger.InfoObj("watcher loop starting", "watcher_state", map[string]any{
		"targets":          len(w.profile.Targets()),
		"publishers_count": w.fanout.Size(),
		"update_interval":  w.profile.UpdateInterval.String(),
	})

	if err := w.runOnce(ctx); err != nil {
		logger.ErrorObj("initial cycle failed", "error", err.Error())
	}

	ticker := time.NewTicker(w.profile.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoObj("watcher loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				logger.ErrorObj("scheduled cycle failed", "error", err.Error())
			}
		}
	}
}

// runOnce performs a single poll cycle.
func (w *Watcher) runOnce(ctx context.Context) error {
	start := time.Now()
	_, err := w.engine.RunCycle(ctx)
	if err != nil {
		return err
	}
	logger.DebugObj("cycle timing", "cycle_meta", map[string]any{
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (w *Watcher) closeLedger() {
	closeLedger(w.seen)
}

func closeLedger(seen ledger.Ledger) {
	if seen == nil {
		return
	}
	if err := seen.Close(); err != nil {
		logger.ErrorObj("ledger close failed", "error", err.Error())
	}
}
