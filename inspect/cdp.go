// CLAUDE:SUMMARY CDP-backed Session implementation over Rod raw proto calls — piercing search, outer HTML, box model, synthetic pointer, Runtime.evaluate.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// CDPAttacher opens inspection sessions against tabs of a shared Rod
// browser. Exclusivity is enforced by an in-process registry: a second
// attach to the same target fails fast, mirroring the debugger protocol's
// one-client-per-target rule.
type CDPAttacher struct {
	browser *rod.Browser

	mu     sync.Mutex
	active map[TargetID]bool
}

// NewCDPAttacher creates an attacher bound to a connected Rod browser.
func NewCDPAttacher(b *rod.Browser) *CDPAttacher {
	return &CDPAttacher{browser: b, active: make(map[TargetID]bool)}
}

// Attach opens a session on the given target. The DOM agent is primed with
// a shallow getDocument so that later performSearch calls operate on a
// tracked tree.
func (a *CDPAttacher) Attach(ctx context.Context, target TargetID) (Session, error) {
	a.mu.Lock()
	if a.active[target] {
		a.mu.Unlock()
		return nil, &AttachError{Target: target, Err: errors.New("session already attached")}
	}
	a.active[target] = true
	a.mu.Unlock()

	page, err := a.browser.PageFromTarget(proto.TargetTargetID(target))
	if err != nil {
		a.release(target)
		return nil, &AttachError{Target: target, Err: err}
	}

	p := page.Context(ctx)
	if err := (proto.DOMEnable{}).Call(p); err != nil {
		a.release(target)
		return nil, &AttachError{Target: target, Err: fmt.Errorf("DOM.enable: %w", err)}
	}
	if _, err := (proto.DOMGetDocument{}).Call(p); err != nil {
		a.release(target)
		return nil, &AttachError{Target: target, Err: fmt.Errorf("DOM.getDocument: %w", err)}
	}

	return &cdpSession{attacher: a, target: target, page: page}, nil
}

func (a *CDPAttacher) release(target TargetID) {
	a.mu.Lock()
	delete(a.active, target)
	a.mu.Unlock()
}

type cdpSession struct {
	attacher *CDPAttacher
	target   TargetID
	page     *rod.Page
	detached sync.Once
}

func (s *cdpSession) Search(ctx context.Context, selector string, pierce bool) ([]NodeID, error) {
	p := s.page.Context(ctx)

	res, err := proto.DOMPerformSearch{
		Query:                     selector,
		IncludeUserAgentShadowDOM: pierce,
	}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("DOM.performSearch: %w", err)
	}
	// The search handle is server-side state; discard it regardless of
	// what happens to the result fetch.
	defer func() {
		_ = proto.DOMDiscardSearchResults{SearchID: res.SearchID}.Call(p)
	}()

	if res.ResultCount == 0 {
		return nil, nil
	}

	got, err := proto.DOMGetSearchResults{
		SearchID:  res.SearchID,
		FromIndex: 0,
		ToIndex:   res.ResultCount,
	}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("DOM.getSearchResults: %w", err)
	}

	ids := make([]NodeID, 0, len(got.NodeIDs))
	for _, id := range got.NodeIDs {
		ids = append(ids, NodeID(id))
	}
	return ids, nil
}

func (s *cdpSession) NodeMarkup(ctx context.Context, id NodeID) (string, error) {
	res, err := proto.DOMGetOuterHTML{NodeID: proto.DOMNodeID(id)}.Call(s.page.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("DOM.getOuterHTML: %w", err)
	}
	return res.OuterHTML, nil
}

func (s *cdpSession) BoundingBox(ctx context.Context, id NodeID) (Box, error) {
	res, err := proto.DOMGetBoxModel{NodeID: proto.DOMNodeID(id)}.Call(s.page.Context(ctx))
	if err != nil {
		return Box{}, fmt.Errorf("DOM.getBoxModel: %w", err)
	}
	// Content quad: x1,y1, x2,y2, x3,y3, x4,y4 (clockwise from top-left).
	q := res.Model.Content
	if len(q) < 8 {
		return Box{}, fmt.Errorf("DOM.getBoxModel: short quad (%d values)", len(q))
	}
	return Box{
		X:      q[0],
		Y:      q[1],
		Width:  q[2] - q[0],
		Height: q[5] - q[1],
	}, nil
}

func (s *cdpSession) DispatchMouseMove(ctx context.Context, x, y float64) error {
	err := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseMoved,
		X:    x,
		Y:    y,
	}.Call(s.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("Input.dispatchMouseEvent: %w", err)
	}
	return nil
}

func (s *cdpSession) EvalJSON(ctx context.Context, expr string) (json.RawMessage, error) {
	res, err := proto.RuntimeEvaluate{
		Expression:    expr,
		ReturnByValue: true,
		AwaitPromise:  true,
	}.Call(s.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("Runtime.evaluate: %w", err)
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("Runtime.evaluate: %s", res.ExceptionDetails.Text)
	}
	data, err := res.Result.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("Runtime.evaluate: marshal result: %w", err)
	}
	return data, nil
}

func (s *cdpSession) Document(ctx context.Context) (*Node, error) {
	depth := -1
	res, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(s.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("DOM.getDocument: %w", err)
	}
	return convertNode(res.Root), nil
}

// Detach releases the exclusivity slot. The tab itself belongs to the
// caller and stays open; double detach is a no-op.
func (s *cdpSession) Detach(ctx context.Context) error {
	s.detached.Do(func() {
		s.attacher.release(s.target)
	})
	return nil
}

func convertNode(n *proto.DOMNode) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:   NodeID(n.NodeID),
		Name: n.NodeName,
	}
	if len(n.Attributes) > 1 {
		out.Attrs = make(map[string]string, len(n.Attributes)/2)
		for i := 0; i+1 < len(n.Attributes); i += 2 {
			out.Attrs[n.Attributes[i]] = n.Attributes[i+1]
		}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, convertNode(c))
	}
	for _, r := range n.ShadowRoots {
		out.ShadowRoots = append(out.ShadowRoots, convertNode(r))
	}
	out.ContentDoc = convertNode(n.ContentDocument)
	return out
}
