// Command reelforged runs the render worker daemon: it claims queued jobs,
// drives them through generation and stitching, and records the outcome.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/render"
	"reelforge/internal/render/ffmpeg"
	"reelforge/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	client := ffmpeg.NewCLI(
		ffmpeg.WithBinary(cfg.Render.FFmpegBinary),
		ffmpeg.WithCodecs(cfg.Render.VideoCodec, cfg.Render.PixelFormat, cfg.Render.AudioCodec),
	)
	stitcher := render.NewStitcher(cfg, client, logging.NewComponentLogger(logger, "stitcher"))
	provider := render.NewHTTPProvider(cfg)
	orchestrator := render.NewOrchestrator(provider, stitcher, store,
		logging.NewComponentLogger(logger, "orchestrator"))

	workerManager := worker.NewManager(cfg, store, orchestrator,
		logging.NewComponentLogger(logger, "worker"))

	d, err := daemon.New(cfg, store, logger, workerManager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("reelforged shutting down")
}
