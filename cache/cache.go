// Package cache decides which chunks need (re-)embedding under a model.
//
// A chunk embedding is keyed by (chunk, model) and snapshots the chunk's
// content hash. It is reused only while that snapshot equals the chunk's
// current hash. Hash equality is taken to mean content equality; a digest
// collision would leave a stale vector in place. That risk is accepted for
// cache invalidation and is not guarded against.
package cache

import "github.com/poiesic/embedeval/core"

// Stale returns the chunks whose embedding is missing or outdated, given the
// stored hash per embedded chunk ID. Order is preserved. A chunk without a
// hash, or whose stored hash is empty, is always stale.
func Stale(chunks []*core.Chunk, stored map[core.ID]string) []*core.Chunk {
	var out []*core.Chunk
	for _, c := range chunks {
		if !Fresh(c, stored) {
			out = append(out, c)
		}
	}
	return out
}

// Fresh reports whether chunk has a valid stored embedding.
func Fresh(chunk *core.Chunk, stored map[core.ID]string) bool {
	hash, ok := stored[chunk.Id]
	if !ok {
		return false
	}
	emb := core.ChunkEmbedding{ContentHash: hash}
	return emb.ValidFor(chunk)
}
