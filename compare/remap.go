package compare

import (
	"context"
	"errors"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// RemapResult counts the phrases touched by Remap.
type RemapResult struct {
	Remapped  int `json:"remapped"`
	Unmatched int `json:"unmatched"`
}

// Remap points every phrase's ground truth at the chunk of its source text
// that best matches the phrase's expected content. A phrase whose best
// match scores below RemapThreshold, or whose expected chunk no longer
// exists and cannot be matched, loses its ground truth until a later remap
// finds a match.
func Remap(ctx context.Context, phrases storage.PhraseRepository, chunks storage.ChunkRepository) (*RemapResult, error) {
	all, err := phrases.ListPhrases(ctx)
	if err != nil {
		return nil, err
	}

	res := &RemapResult{}
	bySource := make(map[core.ID][]*core.Chunk)
	for _, phrase := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target, err := remapTarget(ctx, chunks, bySource, phrase)
		if err != nil {
			return nil, err
		}
		if target == 0 {
			if phrase.ExpectedContent == "" && !phrase.HasGroundTruth() {
				continue
			}
			res.Unmatched++
		} else {
			res.Remapped++
		}
		if target == phrase.ExpectedChunkId {
			continue
		}
		phrase.ExpectedChunkId = target
		if err := phrases.UpdatePhrase(ctx, phrase); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// remapTarget returns the chunk the phrase should point at, or zero.
func remapTarget(ctx context.Context, chunks storage.ChunkRepository, bySource map[core.ID][]*core.Chunk, phrase *core.TestPhrase) (core.ID, error) {
	if phrase.ExpectedContent == "" || phrase.SourceTextId == 0 {
		if !phrase.HasGroundTruth() {
			return 0, nil
		}
		// Without a content snapshot the phrase keeps its chunk while it exists.
		_, err := chunks.GetChunk(ctx, phrase.ExpectedChunkId)
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return phrase.ExpectedChunkId, nil
	}

	candidates, ok := bySource[phrase.SourceTextId]
	if !ok {
		var err error
		if candidates, err = chunks.ListChunksBySource(ctx, phrase.SourceTextId); err != nil {
			return 0, err
		}
		bySource[phrase.SourceTextId] = candidates
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}
	m, ok := FindBestChunkMatch(phrase.ExpectedContent, texts)
	if !ok || m.Score < RemapThreshold {
		return 0, nil
	}
	return candidates[m.Index].Id, nil
}
