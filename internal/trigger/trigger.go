// Package trigger coordinates market-data readiness with authentication
// readiness and fires a single exploratory order exactly once.
package trigger

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gateprobe/config"
	"gateprobe/internal/auth"
	"gateprobe/internal/feed"
	"gateprobe/internal/session"
	"gateprobe/internal/track"
	"gateprobe/logger"
	"gateprobe/models"
)

// Trigger observes price and authentication state. Once both are ready
// it flips its one-shot flag and submits a single order on a dedicated
// connection, kept separate from the market-data and trading sockets to
// avoid head-of-line contention with unrelated traffic.
type Trigger struct {
	cfg     *config.Config
	creds   auth.Credentials
	sess    *session.Session
	tracker *track.Tracker
	prices  *feed.Cell
	dial    session.DialFunc
	log     *logger.Log

	// ctx bounds the delayed firing task to the process lifetime so a
	// clean shutdown aborts a pending, not-yet-fired attempt.
	ctx   context.Context
	wg    sync.WaitGroup
	fired atomic.Bool
}

// New creates the order trigger. ctx is the process lifetime context.
func New(ctx context.Context, cfg *config.Config, creds auth.Credentials, sess *session.Session, tracker *track.Tracker, prices *feed.Cell, dial session.DialFunc) *Trigger {
	return &Trigger{
		cfg:     cfg,
		creds:   creds,
		sess:    sess,
		tracker: tracker,
		prices:  prices,
		dial:    dial,
		log:     logger.GetLogger(),
		ctx:     ctx,
	}
}

// Fired reports whether the one-shot flag has been consumed.
func (t *Trigger) Fired() bool {
	return t.fired.Load()
}

// Wait blocks until a launched firing task has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Evaluate runs on every valid price update. When the price is positive,
// the session is authenticated and the flag is still clear, exactly one
// caller wins the compare-and-swap and launches the firing task. The
// trigger never fires a second time, even if later updates qualify.
func (t *Trigger) Evaluate() {
	if t.fired.Load() {
		return
	}
	log := t.log.WithAccount(t.cfg.Probe.AccountLabel).WithComponent("trigger")

	sample := t.prices.Load()
	if !sample.Valid || !sample.Ask.IsPositive() {
		log.WithFields(logger.Fields{"ask": sample.Ask.String()}).Debug("not placing order: invalid price")
		return
	}
	if !t.sess.Authenticated() {
		log.Debug("not placing order: not authenticated yet")
		return
	}

	if !t.fired.CompareAndSwap(false, true) {
		// A concurrent update won the flip.
		return
	}

	log.WithFields(logger.Fields{
		"ask":    sample.Ask.String(),
		"settle": t.cfg.Timing.SettleDelay().String(),
	}).Info("order trigger fired, settling before submission")

	t.wg.Add(1)
	go t.fire(sample.Ask)
}

// fire waits the settling delay, opens the dedicated order connection,
// authenticates it, submits the order and reads acknowledgments until
// the tracked entry retires.
func (t *Trigger) fire(ask decimal.Decimal) {
	defer t.wg.Done()
	log := t.log.WithAccount(t.cfg.Probe.AccountLabel).WithComponent("trigger")

	timer := time.NewTimer(t.cfg.Timing.SettleDelay())
	defer timer.Stop()
	select {
	case <-t.ctx.Done():
		log.Info("pending order attempt aborted by shutdown")
		return
	case <-timer.C:
	}

	conn, err := t.dial(t.ctx, t.cfg.Exchange.WSURL)
	if err != nil {
		log.WithError(err).Error("failed to open order connection")
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-t.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(auth.LoginRequest(t.creds, time.Now())); err != nil {
		log.WithError(err).Error("failed to send login on order connection")
		return
	}

	var connAuthed, authFailed atomic.Bool
	router := &session.Router{
		Label:         t.cfg.Probe.AccountLabel,
		Tracker:       t.tracker,
		Log:           t.log,
		OnAuthSuccess: func(string) { connAuthed.Store(true) },
		OnAuthFailure: func(string, string) { authFailed.Store(true) },
	}

	for !connAuthed.Load() && !authFailed.Load() {
		raw, err := conn.ReadMessage()
		if err != nil {
			if t.ctx.Err() == nil {
				log.WithError(err).Warn("order connection closed before login acknowledgment")
			}
			return
		}
		router.Handle(raw, time.Now())
	}
	if authFailed.Load() {
		log.Error("order connection login rejected, skipping order attempt")
		return
	}

	if !t.submitOrder(conn, ask, log) {
		return
	}

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if t.ctx.Err() == nil {
				log.WithError(err).Warn("order connection closed before final acknowledgment")
			}
			return
		}
		router.Handle(raw, time.Now())
		if t.tracker.Pending() == 0 {
			log.Info("latency measurement complete")
			return
		}
	}
}

// submitOrder validates, builds and sends the order frame. A validation
// violation is a logged skip rather than an error: the firing window is
// simply forfeited.
func (t *Trigger) submitOrder(conn session.Conn, ask decimal.Decimal, log *logger.Entry) bool {
	qty := decimal.NewFromFloat(t.cfg.Exchange.Quantity)
	if !qty.IsPositive() || !ask.IsPositive() || !t.sess.Authenticated() {
		log.WithFields(logger.Fields{
			"quantity":      qty.String(),
			"price":         ask.String(),
			"authenticated": t.sess.Authenticated(),
		}).Warn("cannot place order, skipping attempt")
		return false
	}

	id := uuid.NewString()
	req := models.OrderRequest{
		Time:    time.Now().Unix(),
		Channel: models.ChannelOrderPlace,
		Event:   models.EventAPI,
		Payload: models.OrderPayload{
			ReqID: id,
			ReqParam: models.OrderParam{
				CurrencyPair: strings.ToLower(t.cfg.Exchange.Pair()),
				Side:         "buy",
				Type:         "limit",
				Amount:       qty.String(),
				Price:        ask.String(),
				TimeInForce:  t.cfg.Exchange.TimeInForce,
			},
		},
	}

	t.tracker.Begin(id)
	if err := conn.WriteJSON(req); err != nil {
		log.WithError(err).Error("failed to submit order")
		return false
	}
	logger.IncrementOrderSent()

	log.WithFields(logger.Fields{
		"request_id": id,
		"pair":       req.Payload.ReqParam.CurrencyPair,
		"side":       req.Payload.ReqParam.Side,
		"amount":     req.Payload.ReqParam.Amount,
		"price":      req.Payload.ReqParam.Price,
	}).Info("order submitted, measuring latency")
	return true
}
