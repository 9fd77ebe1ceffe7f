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

package server

import "errors"

var (
	// ErrEmbedderRequired indicates a server was built without an embedding job.
	ErrEmbedderRequired = errors.New("server: embedding job is required")

	// ErrEvaluatorRequired indicates a server was built without an evaluator.
	ErrEvaluatorRequired = errors.New("server: evaluator is required")

	// ErrRepositoryRequired indicates a server was built without its repositories.
	ErrRepositoryRequired = errors.New("server: repositories are required")

	// ErrGridDisabled is returned by the grid endpoint when no grid runner is configured.
	ErrGridDisabled = errors.New("server: grid search is not configured")

	// ErrBadRequest indicates a malformed query parameter.
	ErrBadRequest = errors.New("bad request")
)
