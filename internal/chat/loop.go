package chat

import (
	"container/heap"
	"context"
	"errors"
	"time"

	"luxemap/estates/internal/logging"
)

// ErrStopped is returned once the loop has exited.
var ErrStopped = errors.New("chat loop stopped")

// Action is a state transition on one Machine.
type Action func(m *Machine) (*Pending, error)

type event struct {
	due     time.Time
	seq     uint64
	session string
	machine *Machine
	pending *Pending
}

// eventQueue is a min-heap on due time, FIFO for equal times.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

type request struct {
	session string
	action  Action // nil reads state only
	drop    bool
	reply   chan result
}

type result struct {
	snap Snapshot
	err  error
}

// Loop owns every chat session. All actions and all delayed replies run on
// the single goroutine started by Run, so machines need no locking.
type Loop struct {
	faq    FAQ
	delays Delays

	reqs     chan request
	stopped  chan struct{}
	sessions map[string]*Machine
	events   eventQueue
	seq      uint64
}

func NewLoop(faq FAQ, delays Delays) *Loop {
	return &Loop{
		faq:      faq,
		delays:   delays,
		reqs:     make(chan request),
		stopped:  make(chan struct{}),
		sessions: make(map[string]*Machine),
	}
}

// Run processes requests and scheduled replies until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var wake <-chan time.Time
		if len(l.events) > 0 {
			timer.Reset(max(time.Until(l.events[0].due), 0))
			wake = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			logging.Logger.Infof("Chat loop stopping with %d sessions, %d pending replies", len(l.sessions), len(l.events))
			return
		case req := <-l.reqs:
			req.reply <- l.handle(req)
		case <-wake:
			l.deliverDue(time.Now())
		}
	}
}

func (l *Loop) handle(req request) result {
	if req.drop {
		delete(l.sessions, req.session)
		return result{}
	}

	m, ok := l.sessions[req.session]
	if !ok {
		m = NewMachine(l.faq, l.delays)
		l.sessions[req.session] = m
	}
	if req.action == nil {
		return result{snap: m.Snapshot()}
	}

	p, err := req.action(m)
	if err != nil {
		return result{snap: m.Snapshot(), err: err}
	}
	if p != nil {
		l.seq++
		heap.Push(&l.events, &event{
			due:     time.Now().Add(p.Delay),
			seq:     l.seq,
			session: req.session,
			machine: m,
			pending: p,
		})
	}
	return result{snap: m.Snapshot()}
}

func (l *Loop) deliverDue(now time.Time) {
	for len(l.events) > 0 && !l.events[0].due.After(now) {
		e := heap.Pop(&l.events).(*event)
		// The session may have been dropped or recreated since scheduling.
		if l.sessions[e.session] != e.machine {
			continue
		}
		e.machine.Deliver(e.pending)
	}
}

func (l *Loop) send(ctx context.Context, req request) (Snapshot, error) {
	req.reply = make(chan result, 1)
	select {
	case l.reqs <- req:
	case <-l.stopped:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.snap, res.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Do runs action on the session's machine, creating the session on first
// use, and schedules any reply it returns. The snapshot reflects the state
// after the action, also when the action is rejected.
func (l *Loop) Do(ctx context.Context, session string, action Action) (Snapshot, error) {
	return l.send(ctx, request{session: session, action: action})
}

// State returns the session's current snapshot.
func (l *Loop) State(ctx context.Context, session string) (Snapshot, error) {
	return l.send(ctx, request{session: session})
}

// Drop tears a session down. Its pending reply, if any, is discarded.
func (l *Loop) Drop(ctx context.Context, session string) error {
	_, err := l.send(ctx, request{session: session, drop: true})
	return err
}

func (l *Loop) Open(ctx context.Context, session string) (Snapshot, error) {
	return l.Do(ctx, session, (*Machine).Open)
}

func (l *Loop) Close(ctx context.Context, session string) (Snapshot, error) {
	return l.Do(ctx, session, (*Machine).Close)
}

func (l *Loop) Reset(ctx context.Context, session string) (Snapshot, error) {
	return l.Do(ctx, session, (*Machine).Reset)
}

func (l *Loop) TalkToHuman(ctx context.Context, session string) (Snapshot, error) {
	return l.Do(ctx, session, (*Machine).TalkToHuman)
}

func (l *Loop) SelectTopic(ctx context.Context, session, topic string) (Snapshot, error) {
	return l.Do(ctx, session, func(m *Machine) (*Pending, error) { return m.SelectTopic(topic) })
}

func (l *Loop) SelectQuestion(ctx context.Context, session, question string) (Snapshot, error) {
	return l.Do(ctx, session, func(m *Machine) (*Pending, error) { return m.SelectQuestion(question) })
}

func (l *Loop) SendMessage(ctx context.Context, session, text string) (Snapshot, error) {
	return l.Do(ctx, session, func(m *Machine) (*Pending, error) { return m.SendMessage(text) })
}
