// Package placement carries the candidate-placement records produced when a
// read is positioned in a tig via its overlaps to already-placed reads, plus
// the orderings used to cluster them.
package placement
