// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/embedeval/core"
)

// writer appends mus-encoded fields to a growing buffer.
type writer struct {
	bs []byte
}

func (w *writer) reserve(size int) []byte {
	start := len(w.bs)
	w.bs = slices.Grow(w.bs, size)[:start+size]
	return w.bs[start:]
}

func (w *writer) uint64(v uint64) { varint.Uint64.Marshal(v, w.reserve(varint.Uint64.Size(v))) }
func (w *writer) int(v int)       { varint.Int.Marshal(v, w.reserve(varint.Int.Size(v))) }
func (w *writer) id(v core.ID)    { w.uint64(uint64(v)) }
func (w *writer) str(v string)    { ord.String.Marshal(v, w.reserve(ord.String.Size(v))) }
func (w *writer) bool(v bool)     { ord.Bool.Marshal(v, w.reserve(ord.Bool.Size(v))) }
func (w *writer) float64(v float64) {
	raw.Float64.Marshal(v, w.reserve(raw.Float64.Size(v)))
}

// time stores UnixNano; the zero time round-trips as zero.
func (w *writer) time(t time.Time) {
	if t.IsZero() {
		w.bool(false)
		return
	}
	w.bool(true)
	varint.Int64.Marshal(t.UnixNano(), w.reserve(varint.Int64.Size(t.UnixNano())))
}

func (w *writer) ints(vs []int) {
	w.int(len(vs))
	for _, v := range vs {
		w.int(v)
	}
}

func (w *writer) ids(vs []core.ID) {
	w.int(len(vs))
	for _, v := range vs {
		w.id(v)
	}
}

func (w *writer) float64s(vs []float64) {
	w.int(len(vs))
	for _, v := range vs {
		w.float64(v)
	}
}

func (w *writer) vector(vs []float32) {
	w.int(len(vs))
	for _, v := range vs {
		raw.Float32.Marshal(v, w.reserve(raw.Float32.Size(v)))
	}
}

// reader decodes fields in the order a writer produced them. The first
// error sticks and every later read returns a zero value.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) uint64() (v uint64) {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int() (v int) {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) id() core.ID { return core.ID(r.uint64()) }

func (r *reader) str() (v string) {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) bool() (v bool) {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) float64() (v float64) {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) time() time.Time {
	if !r.bool() || r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return time.Unix(0, v).UTC()
}

// length reads a slice length and rejects values the remaining input
// cannot hold.
func (r *reader) length() int {
	l := r.int()
	if r.err == nil && (l < 0 || l > len(r.bs)-r.n) {
		r.err = fmt.Errorf("%w: length %d exceeds input", ErrSerializationFailed, l)
		return 0
	}
	return l
}

func (r *reader) ints() []int {
	l := r.length()
	if l == 0 {
		return nil
	}
	vs := make([]int, l)
	for i := range vs {
		vs[i] = r.int()
	}
	return vs
}

func (r *reader) ids() []core.ID {
	l := r.length()
	if l == 0 {
		return nil
	}
	vs := make([]core.ID, l)
	for i := range vs {
		vs[i] = r.id()
	}
	return vs
}

func (r *reader) float64s() []float64 {
	l := r.length()
	if l == 0 {
		return nil
	}
	vs := make([]float64, l)
	for i := range vs {
		vs[i] = r.float64()
	}
	return vs
}

func (r *reader) vector() []float32 {
	l := r.length()
	if l == 0 {
		return nil
	}
	vs := make([]float32, l)
	for i := range vs {
		if r.err != nil {
			return nil
		}
		v, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += n
		r.err = err
		vs[i] = v
	}
	return vs
}

func (r *reader) done() error {
	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var w writer
	w.id(id)
	return w.bs
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	r := reader{bs: data}
	id := r.id()
	return id, r.done()
}

// MarshalSourceText serializes a SourceText to bytes.
func MarshalSourceText(t *core.SourceText) []byte {
	var w writer
	w.id(t.Id)
	w.str(t.Title)
	w.str(t.Content)
	w.int(t.ChunkSize)
	w.int(t.ChunkOverlap)
	w.str(t.ChunkStrategy)
	w.time(t.InsertedAt)
	w.time(t.UpdatedAt)
	return w.bs
}

// UnmarshalSourceText deserializes a SourceText from bytes.
func UnmarshalSourceText(data []byte) (*core.SourceText, error) {
	r := reader{bs: data}
	t := &core.SourceText{
		Id:            r.id(),
		Title:         r.str(),
		Content:       r.str(),
		ChunkSize:     r.int(),
		ChunkOverlap:  r.int(),
		ChunkStrategy: r.str(),
		InsertedAt:    r.time(),
		UpdatedAt:     r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return t, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(c *core.Chunk) []byte {
	var w writer
	w.id(c.Id)
	w.id(c.SourceTextId)
	w.int(c.ChunkIndex)
	w.str(c.Content)
	w.int(c.TokenCount)
	w.str(c.ContentHash)
	w.time(c.InsertedAt)
	return w.bs
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	r := reader{bs: data}
	c := &core.Chunk{
		Id:           r.id(),
		SourceTextId: r.id(),
		ChunkIndex:   r.int(),
		Content:      r.str(),
		TokenCount:   r.int(),
		ContentHash:  r.str(),
		InsertedAt:   r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return c, nil
}

// MarshalEmbeddingModel serializes an EmbeddingModel to bytes.
func MarshalEmbeddingModel(m *core.EmbeddingModel) []byte {
	var w writer
	w.id(m.Id)
	w.str(m.Name)
	w.str(m.Provider)
	w.str(m.ProviderURL)
	w.int(m.Dimensions)
	w.str(m.QueryPrefix)
	w.str(m.DocumentPrefix)
	w.ints(m.MatryoshkaDimensions)
	w.time(m.InsertedAt)
	return w.bs
}

// UnmarshalEmbeddingModel deserializes an EmbeddingModel from bytes.
func UnmarshalEmbeddingModel(data []byte) (*core.EmbeddingModel, error) {
	r := reader{bs: data}
	m := &core.EmbeddingModel{
		Id:                   r.id(),
		Name:                 r.str(),
		Provider:             r.str(),
		ProviderURL:          r.str(),
		Dimensions:           r.int(),
		QueryPrefix:          r.str(),
		DocumentPrefix:       r.str(),
		MatryoshkaDimensions: r.ints(),
		InsertedAt:           r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalRerankerModel serializes a RerankerModel to bytes.
func MarshalRerankerModel(m *core.RerankerModel) []byte {
	var w writer
	w.id(m.Id)
	w.str(m.Name)
	w.str(m.Provider)
	w.str(m.ProviderURL)
	w.time(m.InsertedAt)
	return w.bs
}

// UnmarshalRerankerModel deserializes a RerankerModel from bytes.
func UnmarshalRerankerModel(data []byte) (*core.RerankerModel, error) {
	r := reader{bs: data}
	m := &core.RerankerModel{
		Id:          r.id(),
		Name:        r.str(),
		Provider:    r.str(),
		ProviderURL: r.str(),
		InsertedAt:  r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalTestPhrase serializes a TestPhrase to bytes.
func MarshalTestPhrase(p *core.TestPhrase) []byte {
	var w writer
	w.id(p.Id)
	w.str(p.Phrase)
	w.str(p.Category)
	w.id(p.ExpectedChunkId)
	w.str(p.ExpectedContent)
	w.id(p.SourceTextId)
	w.time(p.InsertedAt)
	return w.bs
}

// UnmarshalTestPhrase deserializes a TestPhrase from bytes.
func UnmarshalTestPhrase(data []byte) (*core.TestPhrase, error) {
	r := reader{bs: data}
	p := &core.TestPhrase{
		Id:              r.id(),
		Phrase:          r.str(),
		Category:        r.str(),
		ExpectedChunkId: r.id(),
		ExpectedContent: r.str(),
		SourceTextId:    r.id(),
		InsertedAt:      r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return p, nil
}

// MarshalChunkEmbedding serializes a ChunkEmbedding to bytes.
func MarshalChunkEmbedding(e *core.ChunkEmbedding) []byte {
	var w writer
	w.id(e.ChunkId)
	w.id(e.ModelId)
	w.str(e.ContentHash)
	w.time(e.UpdatedAt)
	w.vector(e.Vector)
	return w.bs
}

// UnmarshalChunkEmbedding deserializes a ChunkEmbedding from bytes.
func UnmarshalChunkEmbedding(data []byte) (*core.ChunkEmbedding, error) {
	r := reader{bs: data}
	e := &core.ChunkEmbedding{
		ChunkId:     r.id(),
		ModelId:     r.id(),
		ContentHash: r.str(),
		UpdatedAt:   r.time(),
		Vector:      r.vector(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return e, nil
}

// MarshalPhraseEmbedding serializes a PhraseEmbedding to bytes.
func MarshalPhraseEmbedding(e *core.PhraseEmbedding) []byte {
	var w writer
	w.id(e.PhraseId)
	w.id(e.ModelId)
	w.time(e.UpdatedAt)
	w.vector(e.Vector)
	return w.bs
}

// UnmarshalPhraseEmbedding deserializes a PhraseEmbedding from bytes.
func UnmarshalPhraseEmbedding(data []byte) (*core.PhraseEmbedding, error) {
	r := reader{bs: data}
	e := &core.PhraseEmbedding{
		PhraseId:  r.id(),
		ModelId:   r.id(),
		UpdatedAt: r.time(),
		Vector:    r.vector(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return e, nil
}

// MarshalEvalRun serializes an EvalRun to bytes.
func MarshalEvalRun(run *core.EvalRun) []byte {
	var w writer
	w.id(run.Id)
	w.id(run.ModelId)
	w.id(run.RerankerId)
	w.int(run.MatryoshkaDim)
	w.int(run.TopK)
	w.int(run.ChunkSize)
	w.int(run.ChunkOverlap)
	w.str(run.ChunkStrategy)
	w.int(run.TotalChunks)
	w.int(run.TotalPhrases)
	w.int(run.EvaluatedPhrases)
	w.int(run.ExcludedPhrases)
	w.float64(run.Metrics.AvgSimilarity)
	w.float64(run.Metrics.TopKAccuracy1)
	w.float64(run.Metrics.TopKAccuracy3)
	w.float64(run.Metrics.TopKAccuracy5)
	w.float64(run.Metrics.MRRScore)
	w.float64(run.Metrics.NDCGScore)
	w.float64(run.AvgLatencyMs)
	w.str(string(run.Status))
	w.time(run.CreatedAt)
	w.time(run.FinalizedAt)
	return w.bs
}

// UnmarshalEvalRun deserializes an EvalRun from bytes.
func UnmarshalEvalRun(data []byte) (*core.EvalRun, error) {
	r := reader{bs: data}
	run := &core.EvalRun{
		Id:               r.id(),
		ModelId:          r.id(),
		RerankerId:       r.id(),
		MatryoshkaDim:    r.int(),
		TopK:             r.int(),
		ChunkSize:        r.int(),
		ChunkOverlap:     r.int(),
		ChunkStrategy:    r.str(),
		TotalChunks:      r.int(),
		TotalPhrases:     r.int(),
		EvaluatedPhrases: r.int(),
		ExcludedPhrases:  r.int(),
		Metrics: core.Metrics{
			AvgSimilarity: r.float64(),
			TopKAccuracy1: r.float64(),
			TopKAccuracy3: r.float64(),
			TopKAccuracy5: r.float64(),
			MRRScore:      r.float64(),
			NDCGScore:     r.float64(),
		},
		AvgLatencyMs: r.float64(),
		Status:       core.RunStatus(r.str()),
		CreatedAt:    r.time(),
		FinalizedAt:  r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return run, nil
}

// MarshalEvalResult serializes an EvalResult to bytes.
func MarshalEvalResult(res *core.EvalResult) []byte {
	var w writer
	w.id(res.RunId)
	w.id(res.PhraseId)
	w.ids(res.RetrievedChunkIds)
	w.float64s(res.Similarities)
	w.int(res.ExpectedChunkRank)
	w.bool(res.IsHit)
	w.float64(res.LatencyMs)
	return w.bs
}

// UnmarshalEvalResult deserializes an EvalResult from bytes.
func UnmarshalEvalResult(data []byte) (*core.EvalResult, error) {
	r := reader{bs: data}
	res := &core.EvalResult{
		RunId:             r.id(),
		PhraseId:          r.id(),
		RetrievedChunkIds: r.ids(),
		Similarities:      r.float64s(),
		ExpectedChunkRank: r.int(),
		IsHit:             r.bool(),
		LatencyMs:         r.float64(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return res, nil
}

// MarshalJobSummary serializes a JobSummary to bytes.
func MarshalJobSummary(s *core.JobSummary) []byte {
	var w writer
	w.id(s.ModelId)
	w.str(string(s.Scope))
	w.int(s.ChunksEmbedded)
	w.int(s.ChunksSkipped)
	w.int(s.PhrasesEmbedded)
	w.int(s.FailedBatches)
	varint.Int64.Marshal(s.DurationMs, w.reserve(varint.Int64.Size(s.DurationMs)))
	w.bool(s.Cancelled)
	w.time(s.UpdatedAt)
	return w.bs
}

// UnmarshalJobSummary deserializes a JobSummary from bytes.
func UnmarshalJobSummary(data []byte) (*core.JobSummary, error) {
	r := reader{bs: data}
	s := &core.JobSummary{
		ModelId:         r.id(),
		Scope:           core.Scope(r.str()),
		ChunksEmbedded:  r.int(),
		ChunksSkipped:   r.int(),
		PhrasesEmbedded: r.int(),
		FailedBatches:   r.int(),
	}
	if r.err == nil {
		v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
		r.n += n
		r.err = err
		s.DurationMs = v
	}
	s.Cancelled = r.bool()
	s.UpdatedAt = r.time()
	if err := r.done(); err != nil {
		return nil, err
	}
	return s, nil
}
