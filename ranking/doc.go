// Package ranking computes retrieval quality metrics from per-phrase ranks.
//
// Every phrase has exactly one relevant chunk. Its 1-based rank r among the
// retrieved chunks, or 0 when it was not retrieved, is all the metrics need:
//
//	Top-k accuracy  share of phrases with 0 < r <= k, for k in 1, 3, 5
//	MRR             mean of 1/r, 0 for misses
//	nDCG            mean of 1/log2(r+1), 0 for misses (ideal DCG is 1)
//	avgSimilarity   mean top-1 similarity, hit or not
//
// Means are taken over the phrases actually evaluated. Excluded phrases never
// enter the denominator.
package ranking
