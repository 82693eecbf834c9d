package watchdog

// queue is a FIFO of market symbols due for a fetch. A symbol is held at
// most once.
type queue struct {
	items  []string
	member map[string]struct{}
}

func newQueue() *queue {
	return &queue{member: make(map[string]struct{})}
}

// push appends symbol unless it is already queued.
func (q *queue) push(symbol string) bool {
	if _, ok := q.member[symbol]; ok {
		return false
	}
	q.member[symbol] = struct{}{}
	q.items = append(q.items, symbol)
	return true
}

// pop removes and returns the oldest symbol.
func (q *queue) pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	s := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.member, s)
	return s, true
}

// remove drops symbol wherever it is.
func (q *queue) remove(symbol string) {
	if _, ok := q.member[symbol]; !ok {
		return
	}
	delete(q.member, symbol)
	for i, s := range q.items {
		if s == symbol {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *queue) contains(symbol string) bool {
	_, ok := q.member[symbol]
	return ok
}

func (q *queue) len() int { return len(q.items) }

// snapshot returns the queued symbols in order.
func (q *queue) snapshot() []string {
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}
