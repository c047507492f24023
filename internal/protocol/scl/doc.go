// Package scl owns the ASCII command/response codec spoken by the stepper drive.
//
// Ownership boundary:
// - command vocabulary and argument formatting
//
// - frame encoding for both transport framings
//
// - terminator-bounded response reads
//
// - tolerant field extraction and alarm/status code decoding
//
// Field parsers report absence with ok=false. Callers must not read a missing
// field as zero.
package scl
