// CLAUDE:SUMMARY Defines the narrow inspection-session capability surface (piercing search, markup, geometry, pointer, eval) and the exclusive Attacher contract.
// Package inspect implements the instrumented session extraction engine:
// it opens an exclusive inspection session against a live page, locates the
// encapsulated analytics panel despite shadow-DOM encapsulation, parses its
// labeled fields, recovers time-series values from the sales chart by
// synthesizing pointer movement over it, and gathers best-effort auxiliary
// signals, all under a bounded retry policy with guaranteed detach.
//
// The engine talks to the page through the Session interface, a narrow
// capability set independent of any concrete protocol. The production
// implementation (cdp.go) drives Chrome over CDP via Rod; tests use an
// in-memory fake.
package inspect

import (
	"context"
	"encoding/json"
)

// TargetID identifies the live page to instrument. The caller owns the
// underlying tab; the engine only borrows it for the duration of one
// extraction call.
type TargetID string

// NodeID is an opaque node handle, valid only within the session that
// produced it. Never persisted across attempts.
type NodeID int64

// Box is the bounding geometry of a node in page coordinates.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Node is one entry of the full pierced node-descriptor tree used by the
// traversal fallback. Shadow roots and embedded documents are reported as
// separate child lists so the walker can recurse into them explicitly.
type Node struct {
	ID          NodeID
	Name        string // uppercase node name, e.g. "DIV"
	Attrs       map[string]string
	Children    []*Node
	ShadowRoots []*Node
	ContentDoc  *Node
}

// Session is the exclusive, stateful attachment to a target page.
//
// All methods issue one command/response round-trip on a single sequential
// stream; callers must not issue concurrent commands on the same session.
// Detach is idempotent and must be called on every exit path.
type Session interface {
	// Search runs a structured query for selector over the full tree.
	// With pierce set, encapsulated (shadow) subtrees are included.
	// The search handle is discarded before returning.
	Search(ctx context.Context, selector string, pierce bool) ([]NodeID, error)

	// NodeMarkup returns the serialized outer markup of a node.
	NodeMarkup(ctx context.Context, id NodeID) (string, error)

	// BoundingBox returns the node's content-box geometry.
	BoundingBox(ctx context.Context, id NodeID) (Box, error)

	// DispatchMouseMove synthesizes a pointer move to page coordinates.
	DispatchMouseMove(ctx context.Context, x, y float64) error

	// EvalJSON evaluates a script in the page, awaiting promises, and
	// returns the result serialized as JSON.
	EvalJSON(ctx context.Context, expr string) (json.RawMessage, error)

	// Document returns the full node-descriptor tree, pierced through
	// encapsulated subtrees.
	Document(ctx context.Context) (*Node, error)

	// Detach releases the session. Safe to call more than once; every
	// call after the first is a no-op.
	Detach(ctx context.Context) error
}

// Attacher opens inspection sessions. At most one open session may exist
// per target at any time; a second attach fails fast with *AttachError.
type Attacher interface {
	Attach(ctx context.Context, target TargetID) (Session, error)
}
