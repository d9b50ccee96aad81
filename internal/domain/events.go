package domain

// ScanStatus is the scan state machine's externally visible state.
type ScanStatus string

const (
	StatusFilteringStocks ScanStatus = "filtering_stocks"
	StatusScanningOptions ScanStatus = "scanning_options"
	StatusComplete        ScanStatus = "complete"
	StatusError           ScanStatus = "error"
)

// EventType tags one outbound scan event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ScanProgressEvent reports live scan telemetry.
type ScanProgressEvent struct {
	Status         ScanStatus `json:"status"`
	Message        string     `json:"message"`
	Progress       int        `json:"progress"` // 0-100
	TickersScanned int        `json:"tickers_scanned"`
	TickersTotal   int        `json:"tickers_total"`
	ResultsFound   int        `json:"results_found"`
	CurrentTicker  *string    `json:"current_ticker"`
}

// ScanCompleteEvent is the terminal success event.
type ScanCompleteEvent struct {
	Status              ScanStatus `json:"status"`
	TotalResults        int        `json:"total_results"`
	ScanDurationSeconds float64    `json:"scan_duration_seconds"`
	PriceDataTimestamp  int64      `json:"price_data_timestamp"` // ms since epoch
}

// ScanErrorEvent is the terminal failure event. It is emitted only when the
// resolved ticker universe is empty; all other failures degrade to empty
// results for the affected ticker or expiration.
type ScanErrorEvent struct {
	Message string `json:"message"`
}

// ScanEvent is one element of the ordered outbound event sequence. Exactly
// one payload field matching Type is populated.
type ScanEvent struct {
	Type     EventType
	Progress *ScanProgressEvent
	Result   *OptionResult
	Complete *ScanCompleteEvent
	Error    *ScanErrorEvent
}

// Payload returns the populated payload for serialization.
func (e ScanEvent) Payload() any {
	switch e.Type {
	case EventProgress:
		return e.Progress
	case EventResult:
		return e.Result
	case EventComplete:
		return e.Complete
	case EventError:
		return e.Error
	}
	return nil
}

// NewProgressEvent builds a progress event.
func NewProgressEvent(p ScanProgressEvent) ScanEvent {
	return ScanEvent{Type: EventProgress, Progress: &p}
}

// NewResultEvent builds a result event.
func NewResultEvent(r *OptionResult) ScanEvent {
	return ScanEvent{Type: EventResult, Result: r}
}

// NewCompleteEvent builds the terminal complete event.
func NewCompleteEvent(c ScanCompleteEvent) ScanEvent {
	c.Status = StatusComplete
	return ScanEvent{Type: EventComplete, Complete: &c}
}

// NewErrorEvent builds the terminal error event.
func NewErrorEvent(message string) ScanEvent {
	return ScanEvent{Type: EventError, Error: &ScanErrorEvent{Message: message}}
}
