// Package handshake implements the pluggable pre-exchange challenge run
// once per connection before the message loop starts (spec.md §4.5).
package handshake

import (
	"context"
	"io"
)

// Conn is the narrow surface a Plugin needs: byte-level read/write access
// to the connection's socket. It intentionally does not expose the full
// Connection type, so this package has no dependency on the root cats
// package (spec.md §9 design note: no cyclic references).
type Conn interface {
	io.Reader
	io.Writer
}

// Plugin authenticates a freshly accepted connection before it is allowed
// into the message loop. Perform must honor ctx cancellation/deadline —
// the caller applies its own timeout around the call.
type Plugin interface {
	Perform(ctx context.Context, conn Conn) error
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(ctx context.Context, conn Conn) error

func (f PluginFunc) Perform(ctx context.Context, conn Conn) error { return f(ctx, conn) }
