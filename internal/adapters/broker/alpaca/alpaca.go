// Package alpaca implements ports.Broker against an Alpaca-style trading
// REST API, grounded on original_source/brokers/alpaca.py. It is the one
// concrete broker adapter built for this spec; a TWS/gateway-style
// variant is a drop-in behind the same ports.Broker contract (spec.md
// §4.3, §9) and is out of scope here.
package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/broker"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

const (
	clockTimeout     = 10 * time.Second
	accountTimeout   = 15 * time.Second
	positionsTimeout = 15 * time.Second
	quoteTimeout     = 10 * time.Second
	orderTimeout     = 20 * time.Second

	// tradingRatePerSec and dataRatePerSec are conservative per-endpoint
	// ceilings, grounded on polymarket.Client's clobLimiter/gammaLimiter
	// split between trading and market-data endpoint classes.
	tradingRatePerSec = 5.0
	dataRatePerSec    = 8.0

	clientOrderIDMax = 48
)

// Config holds the credentials and base URLs for one Alpaca-style account.
type Config struct {
	APIKey         string
	APISecret      string
	TradingBaseURL string
	DataBaseURL    string
}

// Broker implements ports.Broker against the Alpaca REST surface
// described in spec.md §6.
type Broker struct {
	cfg Config
	http *resty.Client

	tradingLimiter *rate.Limiter
	dataLimiter    *rate.Limiter
}

// New constructs an Alpaca adapter. Credentials are trimmed the way
// original_source/brokers/alpaca.py trims them before use.
func New(cfg Config) *Broker {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = strings.TrimSpace(cfg.APISecret)
	cfg.TradingBaseURL = strings.TrimRight(cfg.TradingBaseURL, "/")
	cfg.DataBaseURL = strings.TrimRight(cfg.DataBaseURL, "/")

	client := resty.New().
		SetHeader("APCA-API-KEY-ID", cfg.APIKey).
		SetHeader("APCA-API-SECRET-KEY", cfg.APISecret).
		SetHeader("Content-Type", "application/json")

	return &Broker{
		cfg:            cfg,
		http:           client,
		tradingLimiter: rate.NewLimiter(rate.Limit(tradingRatePerSec), 10),
		dataLimiter:    rate.NewLimiter(rate.Limit(dataRatePerSec), 10),
	}
}

func (b *Broker) Name() string { return "alpaca" }

func (b *Broker) IsConfigured() bool {
	return b.cfg.APIKey != "" && b.cfg.APISecret != ""
}

func (b *Broker) waitTrading(ctx context.Context) error { return b.tradingLimiter.Wait(ctx) }
func (b *Broker) waitData(ctx context.Context) error    { return b.dataLimiter.Wait(ctx) }

// IsMarketOpen is best-effort: any transport or status error is treated
// as closed (spec.md §4.3).
func (b *Broker) IsMarketOpen(ctx context.Context) bool {
	if err := b.waitTrading(ctx); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, clockTimeout)
	defer cancel()

	var clock struct {
		IsOpen bool `json:"is_open"`
	}
	resp, err := b.http.R().SetContext(ctx).SetResult(&clock).Get(b.cfg.TradingBaseURL + "/v2/clock")
	if err != nil || resp.IsError() {
		return false
	}
	return clock.IsOpen
}

// GetAccount fails with ErrBrokerUnavailable on any transport error.
func (b *Broker) GetAccount(ctx context.Context) (domain.Account, error) {
	if err := b.waitTrading(ctx); err != nil {
		return domain.Account{}, fmt.Errorf("alpaca.GetAccount: %w: %v", broker.ErrBrokerUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, accountTimeout)
	defer cancel()

	var body struct {
		Equity string `json:"equity"`
		Cash   string `json:"cash"`
	}
	resp, err := b.http.R().SetContext(ctx).SetResult(&body).Get(b.cfg.TradingBaseURL + "/v2/account")
	if err != nil {
		return domain.Account{}, fmt.Errorf("alpaca.GetAccount: %w: %v", broker.ErrBrokerUnavailable, err)
	}
	if resp.IsError() {
		return domain.Account{}, fmt.Errorf("alpaca.GetAccount: %w: status=%d", broker.ErrBrokerUnavailable, resp.StatusCode())
	}

	equity, _ := decimal.NewFromString(body.Equity)
	cash, _ := decimal.NewFromString(body.Cash)
	eq, _ := equity.Float64()
	ca, _ := cash.Float64()
	return domain.Account{Equity: eq, Cash: ca}, nil
}

// ListPositions returns every broker position, with Side derived from the
// sign of qty (SideShort for a negative qty) and Qty as its absolute value;
// never nil on soft failure (spec.md §4.3).
func (b *Broker) ListPositions(ctx context.Context) ([]domain.Position, error) {
	if err := b.waitTrading(ctx); err != nil {
		return []domain.Position{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, positionsTimeout)
	defer cancel()

	var raw []struct {
		Symbol        string `json:"symbol"`
		Qty           string `json:"qty"`
		AvgEntryPrice string `json:"avg_entry_price"`
		MarketValue   string `json:"market_value"`
	}
	resp, err := b.http.R().SetContext(ctx).SetResult(&raw).Get(b.cfg.TradingBaseURL + "/v2/positions")
	if err != nil {
		return []domain.Position{}, nil
	}
	if resp.StatusCode() == 404 {
		return []domain.Position{}, nil
	}
	if resp.IsError() {
		return []domain.Position{}, nil
	}

	out := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		qty, _ := decimal.NewFromString(p.Qty)
		side := domain.SideLong
		if qty.IsNegative() {
			side = domain.SideShort
		}
		avg, _ := decimal.NewFromString(p.AvgEntryPrice)
		mv, _ := decimal.NewFromString(p.MarketValue)
		qf, _ := qty.Abs().Float64()
		avgf, _ := avg.Float64()
		mvf, _ := mv.Float64()
		out = append(out, domain.Position{
			Symbol:        strings.ToUpper(p.Symbol),
			Qty:           qf,
			Side:          side,
			AvgEntryPrice: avgf,
			MarketValue:   mvf,
		})
	}
	return out, nil
}

// LatestPrice prefers the quote midpoint, then whichever quote side is
// positive, then the last trade price (spec.md §4.3).
func (b *Broker) LatestPrice(ctx context.Context, symbol string) (float64, bool) {
	symbol = strings.ToUpper(symbol)

	if err := b.waitData(ctx); err == nil {
		qctx, cancel := context.WithTimeout(ctx, quoteTimeout)
		var body struct {
			Quote struct {
				BP float64 `json:"bp"`
				AP float64 `json:"ap"`
			} `json:"quote"`
		}
		resp, err := b.http.R().SetContext(qctx).SetResult(&body).
			Get(fmt.Sprintf("%s/v2/stocks/%s/quotes/latest", b.cfg.DataBaseURL, symbol))
		cancel()
		if err == nil && !resp.IsError() {
			bp, ap := body.Quote.BP, body.Quote.AP
			switch {
			case bp > 0 && ap > 0:
				return (bp + ap) / 2.0, true
			case bp > 0:
				return bp, true
			case ap > 0:
				return ap, true
			}
		}
	}

	if err := b.waitData(ctx); err == nil {
		tctx, cancel := context.WithTimeout(ctx, quoteTimeout)
		var body struct {
			Trade struct {
				P float64 `json:"p"`
			} `json:"trade"`
		}
		resp, err := b.http.R().SetContext(tctx).SetResult(&body).
			Get(fmt.Sprintf("%s/v2/stocks/%s/trades/latest", b.cfg.DataBaseURL, symbol))
		cancel()
		if err == nil && !resp.IsError() && body.Trade.P > 0 {
			return body.Trade.P, true
		}
	}

	return 0, false
}

// PlaceEntryWithBracket opens a long market position with take-profit and
// stop-loss legs grouped as one-cancels-the-other (spec.md §4.3).
// Stop/take prices are rounded to 2dp using decimal arithmetic to avoid
// float rounding drift at order time (spec.md §9).
func (b *Broker) PlaceEntryWithBracket(ctx context.Context, symbol string, qty int, stopLossPct, takeProfitPct float64, clientOrderID string) error {
	symbol = strings.ToUpper(symbol)
	if qty <= 0 {
		return fmt.Errorf("alpaca.PlaceEntryWithBracket: %w: qty must be positive", broker.ErrEntryFailed)
	}

	price, ok := b.LatestPrice(ctx, symbol)
	if !ok || price <= 0 {
		return fmt.Errorf("alpaca.PlaceEntryWithBracket: %w: no price for %s", broker.ErrEntryFailed, symbol)
	}

	px := decimal.NewFromFloat(price)
	stopPrice := px.Mul(decimal.NewFromFloat(1 - stopLossPct)).Round(2)
	takePrice := px.Mul(decimal.NewFromFloat(1 + takeProfitPct)).Round(2)

	if err := b.waitTrading(ctx); err != nil {
		return fmt.Errorf("alpaca.PlaceEntryWithBracket: %w: %v", broker.ErrEntryFailed, err)
	}
	octx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	payload := map[string]any{
		"symbol":         symbol,
		"qty":            fmt.Sprintf("%d", qty),
		"side":           "buy",
		"type":           "market",
		"time_in_force":  "day",
		"order_class":    "bracket",
		"take_profit":    map[string]string{"limit_price": takePrice.String()},
		"stop_loss":      map[string]string{"stop_price": stopPrice.String()},
	}
	if clientOrderID != "" {
		if len(clientOrderID) > clientOrderIDMax {
			clientOrderID = clientOrderID[:clientOrderIDMax]
		}
		payload["client_order_id"] = clientOrderID
	}

	resp, err := b.http.R().SetContext(octx).SetBody(payload).Post(b.cfg.TradingBaseURL + "/v2/orders")
	if err != nil {
		return fmt.Errorf("alpaca.PlaceEntryWithBracket: %w: %v", broker.ErrEntryFailed, err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return fmt.Errorf("alpaca.PlaceEntryWithBracket: %w: status=%d body=%s", broker.ErrEntryFailed, resp.StatusCode(), truncate(resp.String(), 300))
	}
	return nil
}

// ClosePosition closes the full position with DELETE /v2/positions/{sym}
// when qty is nil, else reduces by qty via a market sell order. It does
// not cancel the symbol's open orders (such as bracket legs) first.
func (b *Broker) ClosePosition(ctx context.Context, symbol string, qty *float64, clientOrderID string) error {
	symbol = strings.ToUpper(symbol)

	if err := b.waitTrading(ctx); err != nil {
		return fmt.Errorf("alpaca.ClosePosition: %w: %v", broker.ErrBrokerUnavailable, err)
	}
	octx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	if qty == nil {
		resp, err := b.http.R().SetContext(octx).Delete(b.cfg.TradingBaseURL + "/v2/positions/" + symbol)
		if err != nil {
			return fmt.Errorf("alpaca.ClosePosition: %w: %v", broker.ErrBrokerUnavailable, err)
		}
		if resp.StatusCode() == 404 {
			return broker.ErrNoPosition
		}
		if resp.StatusCode() != 200 && resp.StatusCode() != 204 {
			return fmt.Errorf("alpaca.ClosePosition: status=%d body=%s", resp.StatusCode(), truncate(resp.String(), 300))
		}
		return nil
	}

	if *qty <= 0 {
		return nil
	}
	payload := map[string]any{
		"symbol":        symbol,
		"qty":           fmt.Sprintf("%d", int(*qty)),
		"side":          "sell",
		"type":          "market",
		"time_in_force": "day",
	}
	if clientOrderID != "" {
		if len(clientOrderID) > clientOrderIDMax {
			clientOrderID = clientOrderID[:clientOrderIDMax]
		}
		payload["client_order_id"] = clientOrderID
	}
	resp, err := b.http.R().SetContext(octx).SetBody(payload).Post(b.cfg.TradingBaseURL + "/v2/orders")
	if err != nil {
		return fmt.Errorf("alpaca.ClosePosition: %w: %v", broker.ErrBrokerUnavailable, err)
	}
	if resp.StatusCode() == 404 {
		return broker.ErrNoPosition
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return fmt.Errorf("alpaca.ClosePosition: partial close status=%d body=%s", resp.StatusCode(), truncate(resp.String(), 300))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
