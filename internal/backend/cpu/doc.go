// Package cpu implements the pure Go CPU backend.
//
// Convolution uses the im2col algorithm, split per (batch, group) pair so that
// independent slices of the output can be computed on separate goroutines.
// Every output element is produced by exactly one goroutine, which keeps the
// results identical to a sequential run.
package cpu
