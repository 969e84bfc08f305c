// Package state owns session records and their projections: the in-memory
// tracker with per-session push queues, plus the file-backed preset, media
// and event-archive stores.
package state
