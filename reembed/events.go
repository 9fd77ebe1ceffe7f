package reembed

import "encoding/json"

// EventType discriminates job events on the wire.
type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Phase names reported in progress events.
const (
	PhaseChunks  = "chunks"
	PhasePhrases = "phrases"
)

// Summary is the payload of a complete event.
type Summary struct {
	ModelID         uint64 `json:"modelId"`
	Model           string `json:"model"`
	ChunksEmbedded  int    `json:"chunksEmbedded"`
	ChunksSkipped   int    `json:"chunksSkipped"`
	PhrasesEmbedded int    `json:"phrasesEmbedded"`
	FailedBatches   int    `json:"failedBatches"`
	TotalDurationMs int64  `json:"totalDurationMs"`
	Cancelled       bool   `json:"cancelled,omitempty"`
}

// Event is one message of an embedding job stream.
// Progress is set for EventProgress, Message for EventError and Summary for
// EventComplete. Model names the model the event belongs to.
type Event struct {
	Type     EventType
	Model    string
	Progress Progress
	Message  string
	Summary  *Summary
}

func progressEvent(model string, p Progress) Event {
	return Event{Type: EventProgress, Model: model, Progress: p}
}

func errorEvent(model, message string) Event {
	return Event{Type: EventError, Model: model, Message: message}
}

func completeEvent(s *Summary) Event {
	return Event{Type: EventComplete, Model: s.Model, Summary: s}
}

// MarshalJSON renders the event in its wire shape:
//
//	{"type":"progress","current":1,"total":2,"phase":"chunks","message":"...","elapsedMs":12}
//	{"type":"error","message":"..."}
//	{"type":"complete","data":{...}}
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventProgress:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			Model     string    `json:"model,omitempty"`
			Current   int       `json:"current"`
			Total     int       `json:"total"`
			Phase     string    `json:"phase"`
			Message   string    `json:"message"`
			ElapsedMs int64     `json:"elapsedMs"`
		}{e.Type, e.Model, e.Progress.Current, e.Progress.Total, e.Progress.Phase, e.Progress.Message, e.Progress.ElapsedMs})
	case EventComplete:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Data *Summary  `json:"data"`
		}{e.Type, e.Summary})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Model   string    `json:"model,omitempty"`
			Message string    `json:"message"`
		}{e.Type, e.Model, e.Message})
	}
}
