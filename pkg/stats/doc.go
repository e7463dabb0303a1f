// Package stats implements the incremental statistics collector: a
// mapping-keyed counter bag mutated inline by the pipeline's Endpoint
// (RTP packet and byte counts) and by the orchestrator (stream and data
// channel bindings), snapshotted on demand. A Selector narrows the
// outbound/inbound entries to one sender's or receiver's stream; the
// candidate-pair, transport, codec, and certificate entries are included
// in full for every selector, not narrowed to the ones that stream
// references.
//
// Snapshotting never reads a clock: the caller supplies now, matching
// the sans-I/O timing contract used throughout the rest of the engine,
// and is what makes two Snapshot(now, selector) calls between pipeline
// operations structurally equal.
package stats
