package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/engine"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/ops"
	"main/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if addr := loaded.Profiling.ServerAddress; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading-bot",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	var store storage.Storage
	if loaded.UseMemory {
		store = storage.NewMemory()
	} else {
		pg, err := storage.NewPG(loaded.Database)
		if err != nil {
			log.Fatalf("open storage: %v", err)
		}
		store = pg
	}
	defer store.Close()

	queueSize := loaded.Market.QueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}
	events := bus.NewQueue[model.MarketEvent](queueSize)

	var gateway exchange.Gateway
	if loaded.Exchange.DryRun || loaded.Exchange.Name == "mock" {
		gateway = exchange.NewMock()
	} else {
		gateway = exchange.NewBinance(ctx, loaded.Exchange.APIKey, loaded.Exchange.SecretKey, events)
	}

	bot := engine.New(engine.Config{Market: loaded.Market}, gateway, store, events)

	for _, spec := range loaded.Strategies {
		s, err := bot.AddStrategy(ctx, spec.Symbol, spec.Algorithm, spec.Interval, spec.Params, spec.Settings)
		if err != nil {
			log.Fatalf("start strategy %s on %s: %v", spec.Algorithm, spec.Symbol, err)
		}
		logs.Infof("strategy %s running: %s on %s", s.ID, spec.Algorithm, spec.Symbol)
	}

	bot.Run(ctx)

	for _, s := range bot.Strategies() {
		summary, err := bot.StopStrategy(context.Background(), s.ID, true)
		if err != nil {
			logs.Errorf("stop strategy %s, err: %+v", s.ID, err)
			continue
		}
		logs.Infof("strategy %s final profit: %s", s.ID, summary.Profit)
	}
	logs.Info("shutdown complete")
}
