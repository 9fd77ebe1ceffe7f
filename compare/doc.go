// Package compare ranks finished evaluation runs against each other.
//
// It picks the latest run of each model, lays them out as a comparison
// table, flags the runs on the latency/quality Pareto front, and picks the
// best chunking configuration of a grid search. It also holds the text
// matching used to carry ground truth over to freshly cut chunks.
package compare
