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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidSourceText indicates a SourceText failed validation.
	ErrInvalidSourceText = errors.New("invalid source text")

	// ErrInvalidModel indicates an EmbeddingModel failed validation.
	ErrInvalidModel = errors.New("invalid embedding model")

	// ErrInvalidReranker indicates a RerankerModel failed validation.
	ErrInvalidReranker = errors.New("invalid reranker model")

	// ErrInvalidPhrase indicates a TestPhrase failed validation.
	ErrInvalidPhrase = errors.New("invalid test phrase")

	// ErrEmptyContent indicates a text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates a Name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyProvider indicates a Provider field is empty.
	ErrEmptyProvider = errors.New("provider cannot be empty")

	// ErrInvalidDimensions indicates a non-positive or inconsistent vector size.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrInvalidChunkIndex indicates a negative chunk index.
	ErrInvalidChunkIndex = errors.New("chunk index cannot be negative")
)

// Configuration errors. These reject a request before any work starts.
var (
	// ErrUnknownModel indicates the requested embedding model does not exist.
	ErrUnknownModel = errors.New("unknown embedding model")

	// ErrUnknownReranker indicates the requested reranker does not exist.
	ErrUnknownReranker = errors.New("unknown reranker model")

	// ErrUnsupportedDimension indicates a Matryoshka dimension the model does not declare.
	ErrUnsupportedDimension = errors.New("unsupported matryoshka dimension")

	// ErrInvalidScope indicates an embedding scope other than all, chunks or phrases.
	ErrInvalidScope = errors.New("invalid scope")
)
