// Package winch owns the line vocabulary spoken by the secondary serial
// controllers and by the line bridge.
//
// Ownership boundary:
// - status line schemas (winch and drop cylinder)
//
// - command builders with range clamping
//
// - operator input validation
//
// Parsers are strict: a line missing any required token yields nil, never a
// partially populated record.
package winch
