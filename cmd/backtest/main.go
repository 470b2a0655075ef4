package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/bus"
	"main/internal/engine"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/ops"
	"main/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to replay")
	algoName := flag.String("algo", "moving_average", "algorithm name")
	intervalStr := flag.String("interval", "1m", "candle interval")
	fromStr := flag.String("from", "", "range start, RFC3339")
	toStr := flag.String("to", "", "range end, RFC3339")
	margin := flag.Float64("margin", 100, "margin per position in USD")
	leverage := flag.Int("leverage", 1, "position leverage")
	maxOpen := flag.Int("max-open", 1, "max concurrently open positions")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval, err := enum.ParseInterval(*intervalStr)
	if err != nil {
		log.Fatalf("parse interval: %v", err)
	}
	from, to, err := parseRange(*fromStr, *toStr)
	if err != nil {
		log.Fatalf("parse range: %v", err)
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	events := bus.NewQueue[model.MarketEvent](1)
	bot := engine.New(engine.Config{Market: loaded.Market}, exchange.NewMock(), store, events)

	settings := model.StrategySettings{
		MaxOpenOrders: *maxOpen,
		MarginUSD:     *margin,
		Leverage:      *leverage,
	}

	summary, err := bot.RunBackTest(ctx, *symbol, *algoName, interval, nil, settings, from, to)
	if err != nil {
		log.Fatalf("backtest: %v", err)
	}

	fmt.Printf("strategy:     %s\n", summary.StrategyID)
	fmt.Printf("symbol:       %s\n", summary.Symbol)
	fmt.Printf("profit:       %s\n", summary.Profit)
	fmt.Printf("max profit:   %s\n", summary.MaxProfit)
	fmt.Printf("max drawdown: %s\n", summary.MaxDrawdown)
	fmt.Printf("longs/shorts: %d/%d\n", summary.LongCount, summary.ShortCount)
	fmt.Printf("price range:  %.2f -> %.2f\n", summary.PeriodStartPrice, summary.PeriodEndPrice)
}

func parseRange(fromStr, toStr string) (int64, int64, error) {
	to := time.Now()
	from := to.Add(-7 * 24 * time.Hour)

	var err error
	if fromStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return 0, 0, err
		}
	}
	if toStr != "" {
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			return 0, 0, err
		}
	}
	if !to.After(from) {
		return 0, 0, fmt.Errorf("empty range: %s .. %s", from, to)
	}
	return from.UnixMilli(), to.UnixMilli(), nil
}
