// Package server exposes the drive over an HTTP admin surface.
//
// Ownership boundary:
// - gin router setup with recovery, request logging, metrics and CORS
//
// - JSON motion and configuration endpoints over a bridge.Controller
//
// - /metrics, /faults, /ports and the /ws/status snapshot stream
//
// Rejected operations answer 409 with {"ok":false}; they are normal control
// flow, not errors.
package server
