// Package daemon runs the drive controller as a standalone process.
//
// Ownership boundary:
// - building the drive channel, client, relays, journal and listeners from
//   ServiceConfig
//
// - reconnect supervision for the drive and each relay link
//
// - the heartbeat loop and orderly shutdown
package daemon
