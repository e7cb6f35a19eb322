package traffic

import (
	"context"
	"time"
)

// Store persists traffic records. Implemented by storage.SQLiteStore;
// the recorder only needs the two write methods, search and stats serve
// the management surface and the CLI.
type Store interface {
	SaveRequest(ctx context.Context, rec RequestRecord) error
	SaveResponse(ctx context.Context, rec ResponseRecord) error
}

// Query filters a traffic history search. Zero values mean "no filter";
// Limit falls back to a server-side default and cap.
type Query struct {
	Start  time.Time
	End    time.Time
	Method string
	Status int
	Limit  int
}

// Entry is one request with its outcome, if one was recorded. Response
// is nil for requests whose outcome never made it to the store (e.g. a
// crash between the two writes).
type Entry struct {
	Request  RequestRecord   `json:"request"`
	Response *ResponseRecord `json:"response,omitempty"`
}

// Stats summarizes the traffic store for the dashboard and CLI.
type Stats struct {
	// TotalRequests is the number of recorded requests.
	TotalRequests int64 `json:"total_requests"`

	// TotalResponses is the number of recorded outcomes.
	TotalResponses int64 `json:"total_responses"`

	// SuccessfulRequests counts outcomes with a status below 400.
	SuccessfulRequests int64 `json:"successful_requests"`

	// ErrorRequests counts outcomes with a 4xx/5xx status or no status
	// at all.
	ErrorRequests int64 `json:"error_requests"`

	// SuccessRate is SuccessfulRequests over TotalRequests, as a
	// percentage. Zero when nothing is recorded.
	SuccessRate float64 `json:"success_rate"`

	// AvgDurationMS is the mean handling time across all outcomes.
	AvgDurationMS float64 `json:"avg_duration_ms"`

	// RequestsLastHour counts requests recorded in the past hour.
	RequestsLastHour int64 `json:"requests_last_hour"`

	// LastUpdated is when these stats were computed.
	LastUpdated time.Time `json:"last_updated"`
}
