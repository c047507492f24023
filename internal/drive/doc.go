// Package drive owns the conversation with one stepper drive.
//
// Ownership boundary:
// - connect/init/position sync and disconnect
//
// - serialized command exchanges (one in flight per client)
//
// - the motion state machine with jog lockout and move rate limiting
//
// - adaptive status polling and fault edge detection
//
// Locking:
// - Client.mu guards both link I/O and Status. Held per exchange, never
//   across a callback.
//
// - jog/move timestamps live in atomics and are read without the lock.
//
// Public operations report success as bool or (value, ok); transport errors
// are surfaced through the error and connection callbacks only.
package drive
