// Package transport owns the byte channels between the daemon and a drive.
//
// Ownership boundary:
// - dialing/opening and closing the link
//
// - framing outbound commands for the link type
//
// - terminator-bounded response reads and stale input discard
//
// - reconnect backoff policy
//
// Transport does not own command sequencing or drive state.
package transport
