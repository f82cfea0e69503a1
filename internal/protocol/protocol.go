package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeStartBatch    = "START_BATCH"
	TypeRollOnce      = "ROLL_ONCE"
	TypeWelcome       = "WELCOME"
	TypeAck           = "ACK"
	TypeRoll          = "ROLL"
	TypeBatchComplete = "BATCH_COMPLETE"
	TypeError         = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
