package session

import (
	"encoding/json"
	"time"

	"gateprobe/internal/track"
	"gateprobe/logger"
	"gateprobe/models"
)

// Router dispatches inbound frames to handlers. The trading session and
// the order connection both route through it, so every connection shares
// one normalization step and one set of dispatch rules.
type Router struct {
	Label   string
	Tracker *track.Tracker
	Log     *logger.Log

	// OnAuthSuccess runs when a spot.login acknowledgment carries the
	// success status. OnAuthFailure runs for any other login status.
	OnAuthSuccess func(uid string)
	OnAuthFailure func(status, message string)
}

// Handle parses one raw text frame and dispatches it. Malformed JSON is
// dropped with a warning; it never terminates the connection's read loop.
func (r *Router) Handle(raw []byte, receivedAt time.Time) {
	log := r.Log.WithAccount(r.Label).WithComponent("router")

	in, err := models.ParseInbound(raw)
	if err != nil {
		log.WithError(err).Warn("dropping malformed inbound frame")
		return
	}

	switch {
	case in.Channel == models.ChannelLogin && in.Event == models.EventAPI:
		r.handleAuth(in)
	case in.Channel == models.ChannelPing || in.Channel == models.ChannelPong:
		log.Debug("keep-alive acknowledged")
	case in.Channel == models.ChannelOrderPlace && in.Event == models.EventAPI:
		r.handleOrder(in, receivedAt)
	default:
		log.WithFields(logger.Fields{"channel": in.Channel, "event": in.Event}).Debug("ignoring unrecognized frame")
	}
}

func (r *Router) handleAuth(in models.Inbound) {
	log := r.Log.WithAccount(r.Label).WithComponent("auth")

	if in.Status != models.StatusAuthOK {
		message := in.Message
		if message == "" {
			message = "status " + in.Status
		}
		log.WithFields(logger.Fields{"status": in.Status, "message": message}).Error("authentication failed")
		if r.OnAuthFailure != nil {
			r.OnAuthFailure(in.Status, message)
		}
		return
	}

	var result models.LoginResult
	if in.Data != nil && len(in.Data.Result) > 0 {
		if err := json.Unmarshal(in.Data.Result, &result); err != nil {
			log.WithError(err).Warn("failed to decode login result")
		}
	}
	log.WithFields(logger.Fields{"status": in.Status, "uid": result.UID}).Info("authentication successful")
	if r.OnAuthSuccess != nil {
		r.OnAuthSuccess(result.UID)
	}
}

func (r *Router) handleOrder(in models.Inbound, receivedAt time.Time) {
	log := r.Log.WithAccount(r.Label).WithComponent("order")

	if in.RequestID == "" {
		log.Warn("order acknowledgment without request id")
		return
	}

	ack, ok := r.Tracker.Observe(in.RequestID, receivedAt)
	if !ok {
		// Late or duplicate acknowledgment for a retired request, or an
		// unsolicited push. Must not resurrect tracking.
		log.WithFields(logger.Fields{"request_id": in.RequestID}).Debug("acknowledgment for untracked request")
		return
	}
	logger.IncrementAckObserved()
	logger.LogLatencyEntry(log, in.RequestID, ack.AckIndex, ack.Latency)

	switch in.Status {
	case models.StatusOrderCreated:
		log.WithFields(logger.Fields{"request_id": in.RequestID, "result": string(in.Result)}).Info("order accepted")
	case models.StatusOrderReject:
		message := in.Message
		if message == "" && len(in.Result) > 0 {
			var rm models.ResultMessage
			if err := json.Unmarshal(in.Result, &rm); err == nil {
				message = rm.Message
			}
		}
		log.WithFields(logger.Fields{"request_id": in.RequestID, "status": in.Status, "message": message}).Error("order rejected")
	default:
		log.WithFields(logger.Fields{"request_id": in.RequestID, "status": in.Status, "result": string(in.Result)}).Info("order acknowledgment")
	}

	if summary, done := r.Tracker.Complete(in.RequestID, in.Status); done {
		r.logSummary(summary)
	}
}

func (r *Router) logSummary(s track.Summary) {
	log := r.Log.WithAccount(r.Label).WithComponent("order")

	fields := logger.Fields{
		"request_id": s.RequestID,
		"acks":       len(s.Latencies),
	}
	for _, l := range s.Latencies {
		switch l.AckIndex {
		case 1:
			fields["submit_to_ack1_ms"] = float64(l.Latency.Nanoseconds()) / 1e6
		case 2:
			fields["submit_to_ack2_ms"] = float64(l.Latency.Nanoseconds()) / 1e6
		}
	}
	if s.HasPair {
		delta := float64(s.PairDelta.Nanoseconds()) / 1e6
		fields["ack1_to_ack2_ms"] = delta
		logger.PublishPairDelta(delta)
	}

	log.WithFields(fields).Info("latency summary")
}
