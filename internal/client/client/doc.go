// Package client holds the device side building blocks that talk to the
// outside world: the gRPC client of the remote store and the bootstrap of the
// local SQLite store.
//
// GRPCClient attaches the device access token to every call, authenticates
// again once when the server reports an expired or missing token, and maps
// gRPC status codes onto the sentinel errors of the common package:
//
//	codes.NotFound                           -> common.ErrNotFound
//	codes.Unavailable, DeadlineExceeded      -> common.ErrUnavailable
//	codes.Unauthenticated, PermissionDenied  -> common.ErrUnauthorized
//	anything else                            -> wraps common.ErrRejected
//
// InitDatabase opens the SQLite file, applies the embedded goose migrations
// and returns the repositories bound to it.
package client
