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

package eval

import "errors"

var (
	// ErrRepositoryRequired indicates a coordinator was built without one of
	// its repositories.
	ErrRepositoryRequired = errors.New("eval: repositories are required")

	// ErrSearcherRequired indicates a coordinator was built without a searcher.
	ErrSearcherRequired = errors.New("eval: searcher is required")

	// ErrProviderRequired indicates a reranker was requested but no provider
	// is configured.
	ErrProviderRequired = errors.New("eval: provider is required for reranking")

	// ErrInvalidTopK indicates a non-positive result count.
	ErrInvalidTopK = errors.New("eval: topK must be positive")
)
