// Package grid searches chunking configurations for one embedding model.
//
// For every combination of chunk size, overlap and strategy the Runner
// re-chunks the whole corpus, moves the test phrases' ground truth to the
// new chunks, embeds chunks and phrases, and evaluates the model. The
// corpus is left chunked with the last configuration tried.
package grid
