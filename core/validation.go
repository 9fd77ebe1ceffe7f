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

import (
	"fmt"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - ChunkIndex must not be negative
//
// NOT validated:
//   - ContentHash (an empty hash forces re-embedding)
//   - ID (assigned on insert)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidChunkIndex)
	}

	return nil
}

// ValidateSourceText validates a SourceText.
func ValidateSourceText(text *SourceText) error {
	if text == nil {
		return fmt.Errorf("%w: source text is nil", ErrInvalidSourceText)
	}
	if text.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSourceText, ErrEmptyName)
	}
	return nil
}

// ValidateEmbeddingModel validates an EmbeddingModel.
//
// Validation rules:
//   - Name and Provider must not be empty
//   - Dimensions must be positive
//   - MatryoshkaDimensions must be strictly ascending and within (0, Dimensions]
func ValidateEmbeddingModel(model *EmbeddingModel) error {
	if model == nil {
		return fmt.Errorf("%w: model is nil", ErrInvalidModel)
	}

	if model.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidModel, ErrEmptyName)
	}

	if model.Provider == "" {
		return fmt.Errorf("%w: %w", ErrInvalidModel, ErrEmptyProvider)
	}

	if model.Dimensions <= 0 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidModel, ErrInvalidDimensions, model.Dimensions)
	}

	prev := 0
	for _, dim := range model.MatryoshkaDimensions {
		if dim <= prev || dim > model.Dimensions {
			return fmt.Errorf("%w: %w: matryoshka dimension %d", ErrInvalidModel, ErrInvalidDimensions, dim)
		}
		prev = dim
	}

	return nil
}

// ValidateRerankerModel validates a RerankerModel.
func ValidateRerankerModel(model *RerankerModel) error {
	if model == nil {
		return fmt.Errorf("%w: model is nil", ErrInvalidReranker)
	}
	if model.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidReranker, ErrEmptyName)
	}
	if model.Provider == "" {
		return fmt.Errorf("%w: %w", ErrInvalidReranker, ErrEmptyProvider)
	}
	return nil
}

// ValidateTestPhrase validates a TestPhrase. Ground truth is optional.
func ValidateTestPhrase(phrase *TestPhrase) error {
	if phrase == nil {
		return fmt.Errorf("%w: phrase is nil", ErrInvalidPhrase)
	}
	if phrase.Phrase == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPhrase, ErrEmptyContent)
	}
	return nil
}

// ValidateMatryoshkaDim checks a requested truncation size against the model.
// Zero means no truncation and is always valid.
func ValidateMatryoshkaDim(model *EmbeddingModel, dim int) error {
	if dim == 0 {
		return nil
	}
	if !model.SupportsDimension(dim) {
		return fmt.Errorf("%w: %d not in %v for model %q", ErrUnsupportedDimension, dim, model.MatryoshkaDimensions, model.Name)
	}
	return nil
}

// ParseScope converts a request parameter into a Scope. An empty string
// selects ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeAll, nil
	case ScopeAll, ScopeChunks, ScopePhrases:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}
