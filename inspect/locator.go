package inspect

import (
	"context"
	"strings"
)

// Strategy records which locator path found the panel. Observability only;
// downstream handling is identical.
type Strategy string

const (
	StrategySearch    Strategy = "search"
	StrategyTraversal Strategy = "traversal"
)

// locate finds the encapsulated panel node. The primary strategy is a
// piercing structured search for selector; when that yields nothing (some
// sessions do not support piercing search), it falls back to a manual
// recursive descent over the full pierced descriptor tree, matching marker
// against attribute values. Returns ErrPanelNotFound when both miss.
func locate(ctx context.Context, s Session, selector, marker string) (NodeID, Strategy, error) {
	ids, err := s.Search(ctx, selector, true)
	if err != nil {
		return 0, StrategySearch, err
	}
	if len(ids) > 0 {
		return ids[0], StrategySearch, nil
	}

	root, err := s.Document(ctx)
	if err != nil {
		return 0, StrategyTraversal, err
	}
	if id, ok := findByMarker(root, marker); ok {
		return id, StrategyTraversal, nil
	}
	return 0, StrategyTraversal, ErrPanelNotFound
}

// findByMarker walks the descriptor tree depth-first, recursing into
// reported shadow roots and embedded documents, and returns the first node
// whose attributes contain marker.
func findByMarker(n *Node, marker string) (NodeID, bool) {
	if n == nil || marker == "" {
		return 0, false
	}
	for _, v := range n.Attrs {
		if strings.Contains(v, marker) {
			return n.ID, true
		}
	}
	for _, r := range n.ShadowRoots {
		if id, ok := findByMarker(r, marker); ok {
			return id, true
		}
	}
	if id, ok := findByMarker(n.ContentDoc, marker); ok {
		return id, true
	}
	for _, c := range n.Children {
		if id, ok := findByMarker(c, marker); ok {
			return id, true
		}
	}
	return 0, false
}
