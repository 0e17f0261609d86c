package contracts

import "time"

// Phase is a step of the refresh state machine
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseResolvingUniverse    Phase = "resolving-universe"
	PhaseFetchingPrices       Phase = "fetching-prices"
	PhaseFetchingFundamentals Phase = "fetching-fundamentals"
	PhaseDone                 Phase = "done"
	PhaseFailed               Phase = "failed"
)

// Progress counts finished symbols against the queued total
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// RefreshState describes the active or most recent refresh
type RefreshState struct {
	Running    bool       `json:"running"`
	Phase      Phase      `json:"phase"`
	Progress   Progress   `json:"progress"`
	Message    string     `json:"message"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StartStatus is the outcome of a refresh trigger
type StartStatus string

const (
	StatusStarted        StartStatus = "started"
	StatusAlreadyRunning StartStatus = "already-running"
	StatusAlreadyCurrent StartStatus = "already-current"
)
