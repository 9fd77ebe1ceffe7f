package badger

import (
	"encoding/binary"

	"github.com/poiesic/embedeval/core"
)

// Key prefixes for different data types. Every prefix ends in ':' so no
// prefix scan can match a sequence key or another family.
const (
	sourceTextPrefix      = "src:"
	sourceTextIDSeq       = "srcseq"
	chunkPrefix           = "chk:"
	chunkSourcePrefix     = "chks:"
	chunkIDSeq            = "chkseq"
	phrasePrefix          = "phr:"
	phraseIDSeq           = "phrseq"
	modelPrefix           = "emm:"
	modelNamePrefix       = "emmn:"
	modelIDSeq            = "emmseq"
	rerankerPrefix        = "rrm:"
	rerankerNamePrefix    = "rrmn:"
	rerankerIDSeq         = "rrmseq"
	chunkEmbeddingPrefix  = "cemb:"
	chunkEmbeddingByChunk = "cembc:"
	phraseEmbeddingPrefix = "pemb:"
	generationPrefix      = "egen:"
	runPrefix             = "run:"
	runIDSeq              = "runseq"
	resultPrefix          = "res:"
	resultSeq             = "resseq"
)

// makeKey builds prefix followed by each part as 8 BigEndian bytes, so
// lexicographic key order equals numeric order of the parts.
func makeKey(prefix string, parts ...uint64) []byte {
	buf := make([]byte, len(prefix)+8*len(parts))
	offset := copy(buf, prefix)
	for _, p := range parts {
		binary.BigEndian.PutUint64(buf[offset:], p)
		offset += 8
	}
	return buf
}

// makeNameKey builds a name index key.
func makeNameKey(prefix, name string) []byte {
	return []byte(prefix + name)
}

// keyPart decodes the i-th 8-byte part following prefix.
func keyPart(key []byte, prefix string, i int) core.ID {
	offset := len(prefix) + 8*i
	return core.ID(binary.BigEndian.Uint64(key[offset : offset+8]))
}

func makeSourceTextKey(id core.ID) []byte { return makeKey(sourceTextPrefix, uint64(id)) }
func makeChunkKey(id core.ID) []byte      { return makeKey(chunkPrefix, uint64(id)) }
func makePhraseKey(id core.ID) []byte     { return makeKey(phrasePrefix, uint64(id)) }
func makeModelKey(id core.ID) []byte      { return makeKey(modelPrefix, uint64(id)) }
func makeRerankerKey(id core.ID) []byte   { return makeKey(rerankerPrefix, uint64(id)) }
func makeRunKey(id core.ID) []byte        { return makeKey(runPrefix, uint64(id)) }

// makeChunkSourceKey indexes a chunk under its source text.
// Format: prefix:sourceID:chunkIndex:chunkID
func makeChunkSourceKey(c *core.Chunk) []byte {
	return makeKey(chunkSourcePrefix, uint64(c.SourceTextId), uint64(c.ChunkIndex), uint64(c.Id))
}

// makeChunkEmbeddingKey keys a chunk vector by model first so one model's
// vectors are a contiguous range in chunk ID order.
// Format: prefix:modelID:chunkID
func makeChunkEmbeddingKey(modelID, chunkID core.ID) []byte {
	return makeKey(chunkEmbeddingPrefix, uint64(modelID), uint64(chunkID))
}

// makeChunkEmbeddingIndexKey is the reverse index used to drop every model's
// vector when a chunk is deleted.
// Format: prefix:chunkID:modelID
func makeChunkEmbeddingIndexKey(chunkID, modelID core.ID) []byte {
	return makeKey(chunkEmbeddingByChunk, uint64(chunkID), uint64(modelID))
}

// Format: prefix:modelID:phraseID
func makePhraseEmbeddingKey(modelID, phraseID core.ID) []byte {
	return makeKey(phraseEmbeddingPrefix, uint64(modelID), uint64(phraseID))
}

func makeGenerationKey(modelID core.ID) []byte {
	return makeKey(generationPrefix, uint64(modelID))
}

// Format: prefix:runID:seq
func makeResultKey(runID core.ID, seq uint64) []byte {
	return makeKey(resultPrefix, uint64(runID), seq)
}
