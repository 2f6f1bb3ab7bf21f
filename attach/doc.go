// Package attach merges detached object graphs back into managed state.
//
// Walker visits every reachable value at most once, delegates copying to a Strategy and collects
// optimistic lock failures of a batch into a single aggregate error.
package attach
