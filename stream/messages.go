package stream

// FrameResult carries a processed frame's pipeline output.
type FrameResult struct {
	FrameIndex int            `json:"frame_index"`
	Result     map[string]any `json:"result"`
}

// FrameDropped reports a frame whose result was withheld.
type FrameDropped struct {
	FrameIndex int  `json:"frame_index"`
	Dropped    bool `json:"dropped"`
}

// ErrorMessage is sent before the connection is closed.
type ErrorMessage struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// WarningMessage is an out-of-band notice.
type WarningMessage struct {
	Warning string `json:"warning"`
}

// WarningSlowDown asks the client to reduce its frame rate.
const WarningSlowDown = "slow_down"
