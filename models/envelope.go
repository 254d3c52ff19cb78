package models

import "encoding/json"

// Header is the metadata object the exchange nests inside api-event
// responses. Older message shapes put the same fields at the top level.
type Header struct {
	Channel   string `json:"channel"`
	Event     string `json:"event"`
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// DataEnvelope wraps the payload of api-event responses.
type DataEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// Envelope is the generalized inbound frame: the exchange emits either a
// nested header or the same fields at the top level, so both shapes are
// modelled and Normalize collapses them.
type Envelope struct {
	Header    *Header         `json:"header"`
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
	Result    json.RawMessage `json:"result"`
	Data      *DataEnvelope   `json:"data"`
	Payload   *OrderPayload   `json:"payload"`
}

// Inbound is the canonical view of an inbound frame after header/root
// fallback has been applied. Handlers only ever see this shape.
type Inbound struct {
	Channel   string
	Event     string
	Status    string
	RequestID string
	Message   string
	Result    json.RawMessage
	Data      *DataEnvelope
}

// Normalize collapses the header-or-root field duplication into one
// canonical Inbound. Header fields win when present; the request id
// additionally falls back to the echoed payload.
func (e *Envelope) Normalize() Inbound {
	in := Inbound{
		Channel:   e.Channel,
		Event:     e.Event,
		Status:    e.Status,
		RequestID: e.RequestID,
		Message:   e.Message,
		Result:    e.Result,
		Data:      e.Data,
	}
	if h := e.Header; h != nil {
		if h.Channel != "" {
			in.Channel = h.Channel
		}
		if h.Event != "" {
			in.Event = h.Event
		}
		if h.Status != "" {
			in.Status = h.Status
		}
		if h.RequestID != "" {
			in.RequestID = h.RequestID
		}
		if h.Message != "" {
			in.Message = h.Message
		}
	}
	if in.Message == "" {
		in.Message = e.Error
	}
	if in.RequestID == "" && e.Payload != nil {
		in.RequestID = e.Payload.ReqID
	}
	return in
}

// ParseInbound decodes a raw text frame into its canonical form.
func ParseInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, err
	}
	return env.Normalize(), nil
}

// BookTickerResult is the result object of spot.book_ticker updates.
// Prices and sizes arrive as decimal strings.
type BookTickerResult struct {
	Time     int64  `json:"t"`
	UpdateID int64  `json:"u"`
	Pair     string `json:"s"`
	Bid      string `json:"b"`
	BidSize  string `json:"B"`
	Ask      string `json:"a"`
	AskSize  string `json:"A"`
}

// LoginResult is the result object of a successful spot.login, nested
// under data.result.
type LoginResult struct {
	UID string `json:"uid"`
}

// ResultMessage extracts an error message embedded in a result object,
// used as the fallback when the header carries none.
type ResultMessage struct {
	Message string `json:"message"`
}
