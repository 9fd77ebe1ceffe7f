// Package eval runs retrieval evaluations.
//
// A Coordinator takes every test phrase with ground truth, searches the
// corpus with the phrase's stored query vector, optionally reorders the
// candidates with a reranker, and records where the expected chunk landed.
// Runs are persisted as they go: each phrase result is written immediately
// and the aggregate metrics are written once at the end. A cancelled run
// keeps the results it already wrote and is finalized with status error.
//
// Phrases that cannot be evaluated, for example because the model has no
// vector for them yet, are reported in an error event and listed as
// excluded. They never count towards the metric denominators.
package eval
