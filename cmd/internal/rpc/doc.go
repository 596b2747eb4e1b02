// Package rpc is the method dispatcher.
//
// A Registry is built once at startup from Method values and never changes. The
// Dispatcher resolves the caller's identity from the session token, checks the method's
// required capability against the caller's flattened role set, invokes the handler and
// renders the versioned response envelope. It is served over HTTP (Dispatcher.ServeHTTP)
// and over WebSocket (WSGateway).
package rpc
