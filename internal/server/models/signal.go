package models

import "net/http"

// SignalMessageType is the fixed discriminator of every envelope.
const SignalMessageType = "EMA_CCI_Signal"

// SignalEnvelope is the JSON body posted to a webhook.
type SignalEnvelope struct {
	MessageType string     `json:"message_type"`
	Data        SignalData `json:"data"`
}

// SignalData carries one trading decision. Timestamp is ISO-8601 UTC.
type SignalData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
	Action    string  `json:"action"`
}

// ProbeResult is what a webhook test returns to the caller.
type ProbeResult struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    http.Header `json:"headers"`
	Body       string      `json:"body"`
}
