// Package generation drives one autoregressive generation: it acquires a
// model handle, primes it with the prompt and pulls tokens one at a time,
// reporting progress after each token and checking for cancellation before
// requesting the next.
//
// A run moves Idle -> Loading -> Initialized -> Generating and ends in exactly
// one of Complete, Aborted or Errored. Every run emits its events in order
// through a caller-supplied callback.
package generation
