// Package gospot is the boundary API of an asynchronous Spotify Connect
// client runtime. Hosts assemble a session from small disposable handles:
//
//	discovery → credentials → session + mixer + player → spirc
//
// NewSpirc splits the session into a thread-safe controller (Spirc) whose
// commands and queries may be called from any goroutine, and a
// single-owner task (SpircTask) whose Run blocks one goroutine for the
// lifetime of the session. Every handle has an idempotent, nil-safe Close.
//
// Commands issued before the session is established fail fast with
// ErrNotReady; queries return a consistent Snapshot read under one lock.
package gospot
