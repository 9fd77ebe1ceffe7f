// Package reembed fills in missing and stale embeddings for a model.
//
// A Job loads the corpus, asks the cache package which chunks need work,
// embeds them through a Batcher and persists each phase with one replace
// transaction. Progress, per-batch failures and the final summary are
// streamed as Events so a caller can relay them to a client as they happen.
//
// Batches run strictly in input order. A failed batch is reported and
// skipped; later batches still run. Cancellation stops new batches while
// the batches that already finished are still committed.
package reembed
