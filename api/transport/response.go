package transport

import "encoding/json"

// Envelope is the standard API response wrapper. Success payloads carry
// data (plus optional meta, e.g. partial-resolution warnings); error
// payloads carry the {error, message} pair the frontend keys on.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope.
func NewError(code string, message string) Envelope {
	return Envelope{
		Status:  "error",
		Error:   code,
		Message: message,
	}
}

// PartialMeta flags an owner listing where some ids failed to resolve.
type PartialMeta struct {
	Partial       bool    `json:"partial"`
	UnresolvedIDs []int64 `json:"unresolved_ids"`
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
