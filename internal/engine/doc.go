// Package engine defines the execution engine surface: the interface every
// engine implements, the registry that holds the known engines in priority
// order, and the error types reported when routing cannot proceed.
package engine
