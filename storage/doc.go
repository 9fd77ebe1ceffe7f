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

// Package storage provides the storage abstraction layer for embedeval.
//
// This package defines repository interfaces that decouple persistence from the
// embedding and evaluation engines. The engines only see these interfaces, so a
// test can run them against the in-memory BadgerDB backend or a fake.
//
// # Architecture
//
//   - SourceTextRepository: documents that chunks are cut from
//   - ChunkRepository: immutable chunks, replaced wholesale on re-chunking
//   - PhraseRepository: test phrases and their ground truth
//   - ModelRepository: embedding model and reranker catalog
//   - EmbeddingRepository: chunk and phrase vectors keyed by (item, model)
//   - EvalRepository: evaluation runs and per-phrase results
//
// # Write discipline
//
// Embedding rows are written only through ReplaceChunkEmbeddings and
// ReplacePhraseEmbeddings. Each call deletes the rows for the affected IDs and
// inserts the new set in one transaction, so a reader never observes an item
// with two vectors or a half-applied replacement.
//
// # Serialization
//
// Records are encoded with mus-go primitive serializers (see serialization.go).
// The encoding is positional; appending fields requires a format version bump.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
