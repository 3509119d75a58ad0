package monitor

import "time"

type Status struct {
	Mongo      bool      `json:"mongo"`
	Redis      bool      `json:"redis"`
	PostgreSQL bool      `json:"postgresql"`
	Ledger     bool      `json:"ledger"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}
