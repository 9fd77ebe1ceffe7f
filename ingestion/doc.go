// Package ingestion cuts source texts into chunks and stores them.
//
// The Pipeline type manages the chunking workflow:
//   - Adding new source texts to storage
//   - Cutting each text with a Chunker, concurrently on a worker pool
//   - Replacing the stored chunks of each text in one transaction
//
// Replacing the chunks of a text also drops their embeddings for every model,
// so the next embedding job sees the new chunks as uncached.
package ingestion
