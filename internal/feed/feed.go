// Package feed maintains the market-data subscription and the latest
// observed ask price, independent of the trading session.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"gateprobe/config"
	"gateprobe/internal/session"
	"gateprobe/logger"
	"gateprobe/models"
)

// Feed subscribes to the pair's book-ticker channel on its own
// connection and overwrites the shared price cell on every valid
// update. OnUpdate runs after every valid update regardless of display
// throttling, so trigger evaluation sees them all.
type Feed struct {
	cfg      *config.Config
	dial     session.DialFunc
	prices   *Cell
	log      *logger.Log
	throttle *displayThrottle

	// OnUpdate is invoked after the price cell has been overwritten.
	OnUpdate func()
}

// New creates a market-data feed writing into the given price cell.
func New(cfg *config.Config, prices *Cell, dial session.DialFunc) *Feed {
	return &Feed{
		cfg:      cfg,
		dial:     dial,
		prices:   prices,
		log:      logger.GetLogger(),
		throttle: newDisplayThrottle(cfg.Display.Epsilon, cfg.Display.Window()),
	}
}

// Run connects, subscribes and ingests updates until ctx is cancelled,
// reconnecting with the fixed delay on any transport failure.
func (f *Feed) Run(ctx context.Context) error {
	log := f.log.WithAccount(f.cfg.Probe.AccountLabel).WithComponent("feed")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.serveOnce(ctx, log)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.IncrementReconnect()
		log.WithFields(logger.Fields{"delay": f.cfg.Timing.ReconnectDelay().String()}).Warn("market-data connection lost, reconnecting")
		if waitReconnect(ctx, f.cfg.Timing.ReconnectDelay()) {
			return ctx.Err()
		}
	}
}

func (f *Feed) serveOnce(ctx context.Context, log *logger.Entry) {
	conn, err := f.dial(ctx, f.cfg.Exchange.WSURL)
	if err != nil {
		log.WithError(err).Warn("failed to connect to market-data websocket")
		return
	}
	defer conn.Close()

	pair := f.cfg.Exchange.Pair()
	sub := models.SubscribeRequest{
		Time:    time.Now().Unix(),
		Channel: models.ChannelBookTicker,
		Event:   models.EventSubscribe,
		Payload: []string{pair},
	}
	if err := conn.WriteJSON(sub); err != nil {
		log.WithError(err).Warn("failed to subscribe to book ticker")
		return
	}
	log.WithFields(logger.Fields{"pair": pair}).Info("subscribed to book ticker")

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("market-data read loop ended")
			}
			return
		}
		f.handle(raw, time.Now(), log)
	}
}

// handle ingests one inbound frame. Anything that is not a valid
// book-ticker update for the subscribed pair is ignored.
func (f *Feed) handle(raw []byte, at time.Time, log *logger.Entry) {
	in, err := models.ParseInbound(raw)
	if err != nil {
		log.WithError(err).Warn("dropping malformed market-data frame")
		return
	}
	if in.Channel != models.ChannelBookTicker || in.Event != models.EventUpdate {
		return
	}

	var tick models.BookTickerResult
	if err := json.Unmarshal(in.Result, &tick); err != nil {
		log.WithError(err).Warn("failed to decode book ticker result")
		return
	}
	if tick.Pair != f.cfg.Exchange.Pair() {
		return
	}

	ask, err := decimal.NewFromString(tick.Ask)
	if err != nil {
		log.WithFields(logger.Fields{"ask": tick.Ask}).Debug("unparseable ask price, ignoring update")
		return
	}

	f.prices.Store(Sample{
		Pair:       tick.Pair,
		Ask:        ask,
		ObservedAt: at,
		Valid:      true,
	})
	logger.IncrementPriceUpdate()

	// Presentation only; never gates the trigger evaluation below.
	if f.throttle.allow(ask) {
		log.WithFields(logger.Fields{"pair": tick.Pair, "ask": ask.String()}).Info("book ticker updated")
	}

	if f.OnUpdate != nil {
		f.OnUpdate()
	}
}

// displayThrottle suppresses price output unless the price moved more
// than epsilon since the last displayed value or the time window
// elapsed.
type displayThrottle struct {
	epsilon decimal.Decimal
	limiter *rate.Limiter
	shown   bool
	last    decimal.Decimal
}

func newDisplayThrottle(epsilon float64, window time.Duration) *displayThrottle {
	return &displayThrottle{
		epsilon: decimal.NewFromFloat(epsilon),
		limiter: rate.NewLimiter(rate.Every(window), 1),
	}
}

func (d *displayThrottle) allow(ask decimal.Decimal) bool {
	significant := !d.shown || ask.Sub(d.last).Abs().GreaterThan(d.epsilon)
	if !significant && !d.limiter.Allow() {
		return false
	}
	if significant {
		// Consume the window token too so a change-triggered display
		// still counts against the time budget.
		d.limiter.Allow()
	}
	d.shown = true
	d.last = ask
	return true
}

func waitReconnect(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
