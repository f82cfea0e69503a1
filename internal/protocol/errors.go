package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command layer.
	ErrBadRequest          = "E_BAD_REQUEST"
	ErrAlreadyRunning      = "E_ALREADY_RUNNING"
	ErrInsufficientEntropy = "E_INSUFFICIENT_ENTROPY"
	ErrInternal            = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:     {},
	ErrBadRequest:          {},
	ErrAlreadyRunning:      {},
	ErrInsufficientEntropy: {},
	ErrInternal:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
