package protocol

// START_BATCH (client -> server)
type StartBatchMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Rolls           int    `json:"rolls"`
}

// ROLL_ONCE (client -> server): a batch of one.
type RollOnceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Params          SimParams   `json:"params"`
	Session         SessionView `json:"session"`
}

type SimParams struct {
	TickRateHz       int     `json:"tick_rate_hz"`
	StepsPerTick     int     `json:"steps_per_tick"`
	MaxRolls         int     `json:"max_rolls"`
	RestThreshold    float64 `json:"rest_threshold"`
	DebounceMs       int     `json:"debounce_ms"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	CriticalValue    float64 `json:"critical_value"`
}

// ACK (server -> client): outcome of one command.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// ROLL (server -> client): one settled roll plus the session it updated.
type RollMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Roll            int         `json:"roll"`
	LaunchTick      uint64      `json:"launch_tick"`
	Tick            uint64      `json:"tick"`
	Faces           [2]int      `json:"faces"`
	Session         SessionView `json:"session"`
}

// BATCH_COMPLETE (server -> client)
type BatchCompleteMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Session         SessionView `json:"session"`
}

// ERROR (server -> client): failures not tied to a command, or protocol
// violations.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// SessionView is the reporting view of a batch. Matrix rows are die A's face,
// columns die B's. Marginals holds the per-die statistic, die A first.
type SessionView struct {
	SessionID string          `json:"session_id,omitempty"`
	State     string          `json:"state"`
	Tick      uint64          `json:"tick"`
	Target    int             `json:"target"`
	Completed int             `json:"completed"`
	Running   bool            `json:"running"`
	Matrix    [6][6]int       `json:"matrix"`
	Fairness  FairnessView    `json:"fairness"`
	Marginals [2]FairnessView `json:"marginals"`
}

// FairnessView omits ChiSquared and Expected while the verdict is
// NOT_ENOUGH_DATA so clients never read an undefined statistic as zero.
type FairnessView struct {
	Verdict          string   `json:"verdict"`
	ChiSquared       *float64 `json:"chi_squared,omitempty"`
	Expected         *float64 `json:"expected,omitempty"`
	DegreesOfFreedom int      `json:"degrees_of_freedom"`
	CriticalValue    float64  `json:"critical_value"`
	Total            int      `json:"total"`
}
