package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/api"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/config"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/history"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/manifest"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/player"
	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/timeline"
)

// #region main
func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	easing, err := player.EasingByName(cfg.Playback.Easing)
	if err != nil {
		log.Fatalf("bad easing config: %v", err)
	}

	client := manifest.NewClient(cfg.Server.URL, cfg.ServerTimeout())
	cache := timeline.New(client, cfg.ServerTimeout())

	p := player.New(cache, player.Config{
		FPS:          cfg.Playback.FPS,
		Easing:       easing,
		InitialState: cfg.InitialState(),
	})

	if cfg.HistoryDB != "" {
		store, err := history.NewStore(cfg.HistoryDB)
		if err != nil {
			log.Fatalf("failed to open history db: %v", err)
		}
		defer store.Close()
		p.SetRecorder(recordTo(store))
	}

	server := api.NewServer(p, client)

	if cfg.Blink.Enabled {
		min, max := cfg.BlinkRange()
		blink := player.NewBlinkController(p, min, max)
		blink.Start()
		defer blink.Stop()
	}

	// Best-effort still frame for the startup state.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerTimeout())
	if _, err := p.ResolveIdleFrame(ctx); err != nil && !errors.Is(err, player.ErrNoIdleFrame) {
		log.Printf("idle frame lookup: %v", err)
	}
	cancel()

	log.Printf("player ready: state=%s fps=%v server=%s api=%s",
		p.State(), cfg.Playback.FPS, cfg.Server.URL, cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, server.Handler()); err != nil {
		log.Fatalf("api server: %v", err)
	}
}

// #endregion main

// #region helpers

// recordTo adapts the history store to the player's recorder hook.
func recordTo(store *history.Store) player.RouteRecorder {
	return func(rec player.RouteRecord) {
		segs := make([]history.SegmentRecord, len(rec.Route))
		for i, seg := range rec.Route {
			segs[i] = history.SegmentRecord{
				PathID:    seg.PathID,
				Direction: string(seg.Direction),
			}
		}
		err := store.RecordRoute(history.RouteRecord{
			RouteID:    rec.RouteID,
			FromExpr:   string(rec.From.Expr),
			FromPose:   string(rec.From.Pose),
			ToExpr:     string(rec.To.Expr),
			ToPose:     string(rec.To.Pose),
			Segments:   segs,
			Outcome:    string(rec.Outcome),
			Detail:     rec.Detail,
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
		})
		if err != nil {
			log.Printf("failed to record route %s: %v", rec.RouteID, err)
		}
	}
}

// #endregion helpers
