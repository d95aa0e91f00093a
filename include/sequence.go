package include

import (
	"context"

	"github.com/dubeme/eagerload/metadata"
)

// Sequence yields the related items of one collection fixup. Next observes
// ctx on every call; for asynchronous sequences that call is the sole
// suspension point, and a triggered cancellation aborts enumeration without
// rolling back fixups already applied for prior items. Close releases the
// producer when enumeration ends or is abandoned mid-sequence; the executor
// always calls it, even when a fixup error stops the drain early.
type Sequence interface {
	Next(ctx context.Context) (item metadata.Record, ok bool, err error)
	Close()
}

// sliceSequence is the immediately-iterable form
type sliceSequence struct {
	items []metadata.Record
	pos   int
}

// NewSliceSequence wraps already-loaded items as a Sequence
func NewSliceSequence(items []metadata.Record) Sequence {
	return &sliceSequence{items: items}
}

func (s *sliceSequence) Next(ctx context.Context) (metadata.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.pos >= len(s.items) {
		return nil, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

func (s *sliceSequence) Close() {}

// Result carries one asynchronously produced item or a production error
type Result struct {
	Item metadata.Record
	Err  error
}

// chanSequence is the suspendable form, fed by a producer goroutine
type chanSequence struct {
	ch   <-chan Result
	stop func()
}

// NewChanSequence wraps a result channel as a Sequence. The producer signals
// completion by closing the channel. stop, if non-nil, is invoked by Close to
// release a producer still blocked on an unconsumed send; producers should
// pair it with a cancellable context they select on.
func NewChanSequence(ch <-chan Result, stop func()) Sequence {
	return &chanSequence{ch: ch, stop: stop}
}

func (s *chanSequence) Next(ctx context.Context) (metadata.Record, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res, ok := <-s.ch:
		if !ok {
			return nil, false, nil
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Item, true, nil
	}
}

func (s *chanSequence) Close() {
	if s.stop != nil {
		s.stop()
	}
}
