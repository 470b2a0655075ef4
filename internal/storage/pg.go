package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/model"
	"main/internal/model/enum"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PGOption defines connection options for PostgreSQL.
type PGOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	ConnString string
}

// PG persists history in PostgreSQL through gorm.
type PG struct {
	db *gorm.DB
}

// NewPG opens the connection pool and migrates the schema.
func NewPG(option PGOption) (*PG, error) {
	db, err := gorm.Open(postgres.Open(option.dsn()), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	if err := db.AutoMigrate(&klineRow{}, &tradeRow{}, &summaryRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}

	return &PG{db: db}, nil
}

func (opt PGOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

type klineRow struct {
	Symbol    string `gorm:"primaryKey;size:32"`
	Interval  string `gorm:"primaryKey;size:8"`
	OpenTime  int64  `gorm:"primaryKey"`
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

func (klineRow) TableName() string { return "klines" }

type tradeRow struct {
	ID         string          `gorm:"primaryKey;size:64"`
	StrategyID string          `gorm:"index;size:64"`
	Symbol     string          `gorm:"size:32"`
	Side       string          `gorm:"size:8"`
	OpenTime   int64
	CloseTime  int64           `gorm:"index"`
	OpenPrice  decimal.Decimal `gorm:"type:numeric"`
	ClosePrice decimal.Decimal `gorm:"type:numeric"`
	Quantity   decimal.Decimal `gorm:"type:numeric"`
	MarginUSD  decimal.Decimal `gorm:"type:numeric"`
	Leverage   int
	PositionID string `gorm:"size:64"`
}

func (tradeRow) TableName() string { return "trades" }

type summaryRow struct {
	StrategyID       string          `gorm:"primaryKey;size:64"`
	Symbol           string          `gorm:"size:32"`
	Profit           decimal.Decimal `gorm:"type:numeric"`
	MaxDrawdown      decimal.Decimal `gorm:"type:numeric"`
	MaxProfit        decimal.Decimal `gorm:"type:numeric"`
	LongCount        int
	ShortCount       int
	PeriodStartPrice float64
	PeriodEndPrice   float64
}

func (summaryRow) TableName() string { return "strategy_summaries" }

func (p *PG) SaveKlines(ctx context.Context, klines []model.Kline) error {
	if len(klines) == 0 {
		return nil
	}

	rows := make([]klineRow, 0, len(klines))
	for _, k := range klines {
		rows = append(rows, klineRow{
			Symbol:    k.Symbol,
			Interval:  k.Interval.String(),
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	return errors.Wrap(err, "save klines")
}

func (p *PG) Klines(ctx context.Context, symbol string, interval enum.Interval, from, to int64, limit int) ([]model.Kline, error) {
	query := p.db.WithContext(ctx).
		Where(`symbol = ? AND "interval" = ? AND open_time >= ? AND open_time < ?`,
			symbol, interval.String(), from, to).
		Order("open_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []klineRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query klines")
	}

	out := make([]model.Kline, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		out = append(out, model.Kline{
			Symbol:    row.Symbol,
			Interval:  interval,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
			OpenTime:  row.OpenTime,
			CloseTime: row.CloseTime,
		})
	}
	return out, nil
}

func (p *PG) SaveTrades(ctx context.Context, trades []model.TradeTx) error {
	if len(trades) == 0 {
		return nil
	}

	rows := make([]tradeRow, 0, len(trades))
	for _, tx := range trades {
		rows = append(rows, tradeRow{
			ID:         tx.ID,
			StrategyID: tx.Position.StrategyID,
			Symbol:     tx.Position.Symbol,
			Side:       tx.Position.Side.String(),
			OpenTime:   tx.Position.OpenTime,
			CloseTime:  tx.CloseTime,
			OpenPrice:  tx.Position.OpenPrice,
			ClosePrice: tx.ClosePrice,
			Quantity:   tx.Position.Quantity,
			MarginUSD:  tx.Position.MarginUSD,
			Leverage:   tx.Position.Leverage,
			PositionID: tx.Position.ID,
		})
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	return errors.Wrap(err, "save trades")
}

func (p *PG) Trades(ctx context.Context, strategyID string) ([]model.TradeTx, error) {
	var rows []tradeRow
	err := p.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("close_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query trades")
	}

	out := make([]model.TradeTx, 0, len(rows))
	for _, row := range rows {
		side := enum.OrderSideBuy
		if row.Side == enum.OrderSideSell.String() {
			side = enum.OrderSideSell
		}
		out = append(out, model.TradeTx{
			ID:         row.ID,
			CloseTime:  row.CloseTime,
			ClosePrice: row.ClosePrice,
			Position: model.Position{
				ID:         row.PositionID,
				Symbol:     row.Symbol,
				Side:       side,
				OpenTime:   row.OpenTime,
				OpenPrice:  row.OpenPrice,
				Quantity:   row.Quantity,
				MarginUSD:  row.MarginUSD,
				Leverage:   row.Leverage,
				StrategyID: row.StrategyID,
			},
		})
	}
	return out, nil
}

func (p *PG) SaveStrategySummary(ctx context.Context, summary model.StrategySummary) error {
	row := summaryRow{
		StrategyID:       summary.StrategyID,
		Symbol:           summary.Symbol,
		Profit:           summary.Profit,
		MaxDrawdown:      summary.MaxDrawdown,
		MaxProfit:        summary.MaxProfit,
		LongCount:        summary.LongCount,
		ShortCount:       summary.ShortCount,
		PeriodStartPrice: summary.PeriodStartPrice,
		PeriodEndPrice:   summary.PeriodEndPrice,
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	return errors.Wrap(err, "save strategy summary")
}

func (p *PG) StrategySummary(ctx context.Context, strategyID string) (model.StrategySummary, error) {
	var row summaryRow
	err := p.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return model.StrategySummary{}, ErrSummaryNotFound
	}
	if err != nil {
		return model.StrategySummary{}, errors.Wrap(err, "query strategy summary")
	}
	return rowToSummary(row), nil
}

func (p *PG) ListStrategySummaries(ctx context.Context) ([]model.StrategySummary, error) {
	var rows []summaryRow
	err := p.db.WithContext(ctx).
		Order("strategy_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list strategy summaries")
	}

	out := make([]model.StrategySummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToSummary(row))
	}
	return out, nil
}

func rowToSummary(row summaryRow) model.StrategySummary {
	return model.StrategySummary{
		StrategyID:       row.StrategyID,
		Symbol:           row.Symbol,
		Profit:           row.Profit,
		MaxDrawdown:      row.MaxDrawdown,
		MaxProfit:        row.MaxProfit,
		LongCount:        row.LongCount,
		ShortCount:       row.ShortCount,
		PeriodStartPrice: row.PeriodStartPrice,
		PeriodEndPrice:   row.PeriodEndPrice,
	}
}

func (p *PG) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
