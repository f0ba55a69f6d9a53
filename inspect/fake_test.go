package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// fakeSession is an in-memory Session for tests. Search results are keyed
// by selector; eval behaviour is pluggable.
type fakeSession struct {
	search    map[string][]NodeID
	searchErr error
	markup    map[NodeID]string
	markupErr error
	boxes     map[NodeID]Box
	boxErr    error
	doc       *Node
	docErr    error
	moveErr   error
	evalFn    func(expr string) (json.RawMessage, error)

	searchCalls []string
	docCalls    int
	moves       [][2]float64
	detaches    int
}

func (f *fakeSession) Search(ctx context.Context, selector string, pierce bool) ([]NodeID, error) {
	f.searchCalls = append(f.searchCalls, selector)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search[selector], nil
}

func (f *fakeSession) NodeMarkup(ctx context.Context, id NodeID) (string, error) {
	if f.markupErr != nil {
		return "", f.markupErr
	}
	return f.markup[id], nil
}

func (f *fakeSession) BoundingBox(ctx context.Context, id NodeID) (Box, error) {
	if f.boxErr != nil {
		return Box{}, f.boxErr
	}
	return f.boxes[id], nil
}

func (f *fakeSession) DispatchMouseMove(ctx context.Context, x, y float64) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, [2]float64{x, y})
	return nil
}

func (f *fakeSession) EvalJSON(ctx context.Context, expr string) (json.RawMessage, error) {
	if f.evalFn != nil {
		return f.evalFn(expr)
	}
	return json.RawMessage(`[]`), nil
}

func (f *fakeSession) Document(ctx context.Context) (*Node, error) {
	f.docCalls++
	if f.docErr != nil {
		return nil, f.docErr
	}
	return f.doc, nil
}

func (f *fakeSession) Detach(ctx context.Context) error {
	f.detaches++
	return nil
}

// fakeAttacher hands out one session per attach and counts the balance.
type fakeAttacher struct {
	// make builds the session for the given 1-based attach number. A nil
	// make always returns the shared session.
	make    func(n int) (*fakeSession, error)
	session *fakeSession

	attaches int
	sessions []*fakeSession
}

func (a *fakeAttacher) Attach(ctx context.Context, target TargetID) (Session, error) {
	a.attaches++
	if a.make == nil {
		a.sessions = append(a.sessions, a.session)
		return a.session, nil
	}
	s, err := a.make(a.attaches)
	if err != nil {
		return nil, err
	}
	a.sessions = append(a.sessions, s)
	return s, nil
}

// detachTotal sums detach calls over every session handed out.
func (a *fakeAttacher) detachTotal() int {
	n := 0
	for _, s := range a.sessions {
		n += s.detaches
	}
	return n
}

var errBoom = errors.New("boom")

// noSleep records requested delays without waiting.
type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

// panelDoc builds a minimal descriptor tree with the marked panel buried
// inside a shadow root.
func panelDoc(marker string, id NodeID) *Node {
	return &Node{
		ID:   1,
		Name: "HTML",
		Children: []*Node{
			{
				ID:   2,
				Name: "BODY",
				Children: []*Node{
					{
						ID:   3,
						Name: "DIV",
						ShadowRoots: []*Node{
							{
								ID:   4,
								Name: "#document-fragment",
								Children: []*Node{
									{ID: id, Name: "DIV", Attrs: map[string]string{"class": "wrap " + marker}},
								},
							},
						},
					},
				},
			},
		},
	}
}
