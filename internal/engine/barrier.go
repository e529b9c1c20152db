package engine

// delivery moves a token to a vertex or, when to is sinkComplete, to the
// completion sink.
type delivery struct {
	to  int
	tok token
}

const sinkComplete = -1

type tokenState uint8

const (
	tokenLive tokenState = iota
	tokenDead
	tokenFailed
	// tokenGate only counts toward the inputs of a merge group member.
	tokenGate
)

type token struct {
	state tokenState
	// own marks the flow from a merge vertex's own handler.
	own   bool
	value any
	err   error
}

// barrier holds the outgoing transitions of a merge group until every member
// merge point has resolved, then releases them in member order. Transitions
// merging into another member pass through immediately so members can feed
// each other.
type barrier struct {
	pending int
	held    [][]delivery
}

func newBarrier(members int) *barrier {
	return &barrier{pending: members, held: make([][]delivery, members)}
}

// hold parks d on behalf of the member at position pos.
func (b *barrier) hold(pos int, d delivery) {
	b.held[pos] = append(b.held[pos], d)
}

// arrive records a resolved member and returns the held deliveries once the
// last member arrives.
func (b *barrier) arrive() []delivery {
	b.pending--
	if b.pending > 0 {
		return nil
	}
	var out []delivery
	for _, ds := range b.held {
		out = append(out, ds...)
	}
	b.held = nil
	return out
}
