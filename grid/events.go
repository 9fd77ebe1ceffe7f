package grid

import (
	"encoding/json"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/ingestion"
)

// EventType discriminates grid events on the wire.
type EventType string

const (
	EventConfig   EventType = "config"
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventResult   EventType = "result"
	EventComplete EventType = "complete"
)

// Result is the outcome of one configuration.
type Result struct {
	Config           ingestion.ChunkConfig `json:"config"`
	Metrics          core.Metrics          `json:"metrics"`
	RunID            core.ID               `json:"runId"`
	TotalChunks      int                   `json:"totalChunks"`
	TotalPhrases     int                   `json:"totalPhrases"`
	EvaluatedPhrases int                   `json:"evaluatedPhrases"`
	Remapped         int                   `json:"remapped"`
	Unmatched        int                   `json:"unmatched"`
	AvgLatencyMs     float64               `json:"avgLatencyMs"`
	Details          []eval.Detail         `json:"details,omitempty"`
}

// Recommendation is the best configuration of a search.
type Recommendation struct {
	ingestion.ChunkConfig
	Metrics core.Metrics `json:"metrics"`
	RunID   core.ID      `json:"runId"`
}

// Summary is the payload of the complete event.
type Summary struct {
	Results        []Result        `json:"results"`
	Recommendation *Recommendation `json:"recommendation"`
}

// Event is one message of a grid search stream. Current and Total number
// configurations in config events.
type Event struct {
	Type    EventType
	Current int
	Total   int
	Config  ingestion.ChunkConfig
	Message string
	Result  *Result
	Summary *Summary
}

// MarshalJSON renders the event in its wire shape:
//
//	{"type":"config","current":1,"total":12,"chunkSize":100,"chunkOverlap":0,"strategy":"sentence"}
//	{"type":"progress","message":"..."}
//	{"type":"result","config":{...},"metrics":{...},"runId":3,...}
//	{"type":"complete","data":{"results":[...],"recommendation":{...}}}
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventConfig:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Current int       `json:"current"`
			Total   int       `json:"total"`
			ingestion.ChunkConfig
		}{e.Type, e.Current, e.Total, e.Config})
	case EventResult:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			*Result
		}{e.Type, e.Result})
	case EventComplete:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Data *Summary  `json:"data"`
		}{e.Type, e.Summary})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	}
}
