// Package bridge serves the winch line protocol over TCP on top of a drive
// motion controller.
//
// Ownership boundary:
// - listener lifecycle and per-connection read loops
//
// - mapping winch line commands onto controller operations
//
// - rendering controller state as a winch status line
//
// Replies are one line each: OK, ERR:<REASON>, or the status line.
package bridge
