package eval

import (
	"encoding/json"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/ranking"
)

// EventType discriminates evaluation events on the wire.
type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Progress reports the phrase about to be evaluated.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ChunkRef identifies a chunk in a result detail.
type ChunkRef struct {
	ChunkId     core.ID `json:"chunkId"`
	ChunkIndex  int     `json:"chunkIndex"`
	Content     string  `json:"content"`
	SourceTitle string  `json:"sourceTitle"`
}

// Retrieved is one ranked candidate of a phrase.
type Retrieved struct {
	ChunkRef
	Similarity float64 `json:"similarity"`
	IsExpected bool    `json:"isExpected"`
}

// Detail is the per-phrase breakdown included in the complete event.
type Detail struct {
	PhraseId        core.ID     `json:"phraseId"`
	Phrase          string      `json:"phrase"`
	Category        string      `json:"category"`
	ExpectedChunk   *ChunkRef   `json:"expectedChunk"`
	RetrievedChunks []Retrieved `json:"retrievedChunks"`
	ExpectedRank    *int        `json:"expectedRank"`
	IsHit           bool        `json:"isHit"`
	LatencyMs       float64     `json:"latencyMs"`
}

// Exclusion names a phrase that was left out of the metrics.
type Exclusion struct {
	PhraseId core.ID `json:"phraseId"`
	Phrase   string  `json:"phrase"`
	Reason   string  `json:"reason"`
}

// Result is the payload of a complete event.
type Result struct {
	RunID core.ID `json:"runId"`
	core.Metrics
	CategoryBreakdown []ranking.CategoryStats `json:"categoryBreakdown"`
	Details           []Detail                `json:"details"`
	Excluded          []Exclusion             `json:"excluded"`
	// TotalPhrases counts the ground-truthed phrases considered; the metrics
	// cover EvaluatedPhrases of them.
	TotalPhrases     int     `json:"totalPhrases"`
	EvaluatedPhrases int     `json:"evaluatedPhrases"`
	AvgLatencyMs     float64 `json:"avgLatencyMs"`
}

// Event is one message of an evaluation stream.
type Event struct {
	Type     EventType
	Progress Progress
	Message  string
	Result   *Result
}

func progressEvent(current, total int, message string) Event {
	return Event{Type: EventProgress, Progress: Progress{Current: current, Total: total, Message: message}}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

func completeEvent(r *Result) Event {
	return Event{Type: EventComplete, Result: r}
}

// MarshalJSON renders the event in its wire shape:
//
//	{"type":"progress","current":1,"total":20,"message":"..."}
//	{"type":"error","message":"..."}
//	{"type":"complete","data":{"runId":7,"topKAccuracy1":0.8,...}}
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventProgress:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Progress
		}{e.Type, e.Progress})
	case EventComplete:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Data *Result   `json:"data"`
		}{e.Type, e.Result})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	}
}
