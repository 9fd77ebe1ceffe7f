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

// Package search ranks the chunks of a model by cosine similarity to a query
// vector.
//
// The Engine keeps an in-memory snapshot of every chunk vector per model.
// Snapshots are cached in an expiring LRU keyed by the model and its
// embedding generation, so a finished embedding job invalidates them
// without any explicit call.
//
// With a Matryoshka dimension both the query and each candidate are cut to
// their first dim components before scoring. The dimension must be one the
// model declares.
//
// Results are ordered by descending similarity. Equal similarities keep
// chunk insertion order, so rankings are reproducible.
package search
