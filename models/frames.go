package models

// Channel and event names used by the Gate.io v4 WebSocket API.
const (
	ChannelBookTicker = "spot.book_ticker"
	ChannelLogin      = "spot.login"
	ChannelOrderPlace = "spot.order_place"
	ChannelPing       = "spot.ping"
	ChannelPong       = "spot.pong"

	EventSubscribe = "subscribe"
	EventUpdate    = "update"
	EventAPI       = "api"
)

// Status codes the exchange attaches to api-event acknowledgments.
const (
	StatusAuthOK       = "200"
	StatusOrderCreated = "201"
	StatusOrderReject  = "400"
)

// SubscribeRequest subscribes to a public channel for one or more pairs.
type SubscribeRequest struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event"`
	Payload []string `json:"payload"`
}

// AuthPayload carries the signed login parameters.
type AuthPayload struct {
	APIKey    string `json:"api_key"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
	ReqID     string `json:"req_id"`
}

// AuthRequest is the spot.login handshake frame.
type AuthRequest struct {
	Time    int64       `json:"time"`
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Payload AuthPayload `json:"payload"`
}

// OrderParam holds the order parameters in the exchange's wire format.
// Side, order type and time-in-force are lowercase; amount and price are
// decimal strings.
type OrderParam struct {
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	TimeInForce  string `json:"time_in_force"`
}

// OrderPayload pairs a request identifier with its order parameters.
type OrderPayload struct {
	ReqID    string     `json:"req_id"`
	ReqParam OrderParam `json:"req_param"`
}

// OrderRequest is the spot.order_place frame. The request itself is not
// individually signed; it relies on the connection's prior login.
type OrderRequest struct {
	Time    int64        `json:"time"`
	Channel string       `json:"channel"`
	Event   string       `json:"event"`
	Payload OrderPayload `json:"payload"`
}

// PingRequest is the spot.ping keep-alive frame.
type PingRequest struct {
	Time    int64  `json:"time"`
	Channel string `json:"channel"`
}
