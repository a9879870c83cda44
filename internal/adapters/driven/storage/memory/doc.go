// Package memory provides in-memory implementations of the driven ports.
//
// The stores back the "memory" drivers used for offline runs and serve as
// fakes in tests. All stores are safe for concurrent use.
package memory
