// Package types defines the JSON error surface shared by the forwarding
// pipeline, the HTTP middleware, and the management API. It sits below
// all of them so each can produce identical error bodies without
// importing the others.
package types
