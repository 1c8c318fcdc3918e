// Package handler provides HTTP request handlers for PairMesh.
//
// This package implements the pairing, upload, realtime and administrative
// endpoints. Every JSON response uses the Response envelope, and service
// errors are translated to HTTP statuses by their domain.Kind.
package handler
