package types

// UnknownMessageID is the identifier recorded for messages the queue service
// returned without a MessageId.
const UnknownMessageID = "Unknown"

// MessageAttribute is a user-defined message attribute as reported by the
// queue service. Field names follow the service's own wire casing so the
// output reads the same as the AWS console and CLI.
type MessageAttribute struct {
	DataType         string   `json:"DataType"`
	StringValue      *string  `json:"StringValue,omitempty"`
	BinaryValue      []byte   `json:"BinaryValue,omitempty"`
	StringListValues []string `json:"StringListValues,omitempty"`
	BinaryListValues [][]byte `json:"BinaryListValues,omitempty"`
}

// NormalizedMessage is the human-readable form of one received queue message.
// It is created once by the normalizer and never mutated afterwards.
type NormalizedMessage struct {
	MessageID        string                      `json:"messageId"`
	SentTime         string                      `json:"sentTime"`
	SentTimeEpoch    int64                       `json:"sentTimeEpoch"`
	FirstReceiveTime string                      `json:"firstReceiveTime"`
	Attributes       map[string]MessageAttribute `json:"attributes"`

	// Body holds the parsed JSON document (as json.RawMessage) when the raw
	// body is valid JSON, otherwise the raw body string unchanged.
	Body any `json:"body"`
}

// QueueStats is the queue service's approximate view of a queue's depth.
// All counts are eventually consistent.
type QueueStats struct {
	Visible  int `json:"visible"`
	InFlight int `json:"inFlight"`
	Delayed  int `json:"delayed"`
}
