// Package builtin provides the core stages of a Conduit topology: sources
// that run on the job's tracked threads and tasks, per-tuple pipes, a sink
// and the routing stages FanOut, Split and Union.
//
// Typed stages drop tuples whose dynamic type does not match their type
// parameter.
package builtin
