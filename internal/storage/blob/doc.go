// Package blob provides the local-disk adapter for uploaded artifacts.
//
// Objects are written to a temporary file, synced and renamed into
// place, so a reader never observes a partially written artifact.
// Failures are returned already classified as Filesystem or Storage
// domain errors.
package blob
