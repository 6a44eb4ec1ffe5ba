package cats

import (
	"context"

	"github.com/cifrazia/cats/router"
)

// HandlerFunc is the signature every registered handler implements
// (spec.md §4.4). It receives the same *Request whether the peer framed
// it as 0x00 Request or 0x01 StreamRequest (spec.md §9 design note).
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Router is the type-safe façade over router.Router used by Application/
// Server (spec.md §4.6). Keeping the version-range algorithm in a separate,
// handler-type-agnostic package avoids a cats↔router import cycle while
// letting callers register ordinary HandlerFunc values here.
type Router struct {
	inner router.Router
}

// NewRouter returns an empty Router.
func NewRouter() *Router { return &Router{} }

// Register records fn as the handler for handlerID starting at
// baseVersion. endVersion<0 means "no explicit end" (spec.md §4.6 rules
// 1–3); pass -1 for that case.
func (r *Router) Register(handlerID uint16, baseVersion uint32, endVersion int64, fn HandlerFunc) {
	r.inner.Register(handlerID, baseVersion, endVersion, fn)
}

// Build resolves all registrations into concrete ranges. Call once, after
// every Register and before Server.Serve (spec.md §5: "write-once after
// server start").
func (r *Router) Build() { r.inner.Build() }

// lookup finds the handler for (handlerID, version), or router.ErrNotFound.
func (r *Router) lookup(handlerID uint16, version uint32) (HandlerFunc, error) {
	h, err := r.inner.Lookup(handlerID, version)
	if err != nil {
		return nil, err
	}
	return h.(HandlerFunc), nil
}
