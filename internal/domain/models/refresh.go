package models

import "time"

// RefreshType names the kind of snapshot a refresh job rebuilds.
type RefreshType string

const (
	RefreshFundamental RefreshType = "fundamental"
	RefreshTechnical   RefreshType = "technical"
)

// AllRefreshTypes is the default type set of a refresh request.
var AllRefreshTypes = []RefreshType{RefreshFundamental, RefreshTechnical}

// RefreshStatusStarted is the acknowledgement status of an accepted refresh.
const RefreshStatusStarted = "refresh_started"

// RefreshJob asks a worker to rebuild one snapshot kind for one symbol.
type RefreshJob struct {
	ID          string      `json:"id"`
	RequestID   string      `json:"requestId"`
	Symbol      string      `json:"symbol"`
	Type        RefreshType `json:"type"`
	RequestedAt time.Time   `json:"requestedAt"`
}

// RefreshAck is returned as soon as refresh jobs are handed to a dispatcher.
type RefreshAck struct {
	Status    string        `json:"status"`
	RequestID string        `json:"requestId"`
	Symbols   []string      `json:"symbols"`
	Types     []RefreshType `json:"types"`
}
