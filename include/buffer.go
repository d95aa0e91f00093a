package include

import (
	"context"

	"github.com/dubeme/eagerload/metadata"
)

// CollectionFixup is one deferred one-to-many fixup: a compiled collection
// operation bound to a concrete owner plus a supplier of the owner's
// related-item sequence.
type CollectionFixup struct {
	Op     *CollectionOp
	Owner  metadata.Record
	Supply func(ctx context.Context) (Sequence, error)
}

// Buffer queues collection fixups submitted during row execution until the
// pipeline drains them. Applications are recorded per collection include id
// and item identity, so repeated flushes never double-apply an item.
type Buffer struct {
	pending []*CollectionFixup
	applied map[int]map[appliedKey]bool
}

type appliedKey struct {
	owner any
	item  any
}

// NewBuffer creates an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{
		applied: make(map[int]map[appliedKey]bool),
	}
}

// Submit queues a collection fixup for the next flush
func (b *Buffer) Submit(f *CollectionFixup) {
	b.pending = append(b.pending, f)
}

// Pending returns the number of queued fixups
func (b *Buffer) Pending() int {
	return len(b.pending)
}

func (b *Buffer) take() []*CollectionFixup {
	pending := b.pending
	b.pending = nil
	return pending
}

// markApplied records one item application under a collection include id,
// returning false if it was already applied
func (b *Buffer) markApplied(id int, key appliedKey) bool {
	seen := b.applied[id]
	if seen == nil {
		seen = make(map[appliedKey]bool)
		b.applied[id] = seen
	}
	if seen[key] {
		return false
	}
	seen[key] = true
	return true
}

// Flush drains pending collection fixups, enumerating each sequence
// synchronously
func (e *Executor) Flush() error {
	return e.FlushContext(context.Background())
}

// FlushContext drains pending collection fixups, awaiting each element of
// asynchronous sequences. Draining repeats until no fixup remains, since
// applying an item's sub-plan may submit nested collection fixups.
// Cancellation aborts the remaining fixups; fixups already applied stand.
func (e *Executor) FlushContext(ctx context.Context) error {
	if e.buffer == nil {
		return nil
	}

	for {
		fixups := e.buffer.take()
		if len(fixups) == 0 {
			return nil
		}
		for _, f := range fixups {
			if err := e.applyCollection(ctx, f); err != nil {
				return err
			}
		}
	}
}

func (e *Executor) applyCollection(ctx context.Context, f *CollectionFixup) error {
	seq, err := f.Supply(ctx)
	if err != nil {
		return err
	}
	// Close on every exit so an abandoned producer is released even when a
	// fixup error stops the drain mid-sequence
	defer seq.Close()

	for {
		item, ok, err := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.applyItem(ctx, f, item); err != nil {
			return err
		}
	}
}

func (e *Executor) applyItem(ctx context.Context, f *CollectionFixup, item metadata.Record) error {
	op := f.Op

	if key, identified := fixupIdentity(op, f.Owner, item); identified {
		if !e.buffer.markApplied(op.ID, key) {
			return nil
		}
	}

	if op.Tracked {
		if err := e.trackedItemFixup(op, f.Owner, item); err != nil {
			return err
		}
	} else {
		op.Relationship.Add(f.Owner, item)
		applyInverse(op.Inverse, item, f.Owner)
	}

	if op.Items != nil && len(op.Items.Ops) > 0 {
		slots, err := e.source.Slots(ctx, op.Items, item)
		if err != nil {
			return err
		}
		return e.applyOps(ctx, op.Items.Ops, item, slots)
	}
	return nil
}

func (e *Executor) trackedItemFixup(op *CollectionOp, owner, item metadata.Record) error {
	itemEntry, err := e.trackRelated(op.Relationship, item)
	if err != nil {
		return err
	}

	ownerEntry, err := e.ownerEntry(op.Relationship, owner)
	if err != nil {
		return err
	}
	ownerEntry.AddToRelationSnapshot(op.Relationship, item)

	applyTrackedInverse(itemEntry, op.Inverse, owner)
	return nil
}

// fixupIdentity derives the dedup key for one yielded item. Unidentifiable
// owners or items are applied without dedup.
func fixupIdentity(op *CollectionOp, owner, item metadata.Record) (appliedKey, bool) {
	ownerKey, ok := op.Relationship.Source.Key(owner)
	if !ok {
		return appliedKey{}, false
	}
	itemKey, ok := op.Relationship.Target.Key(item)
	if !ok {
		return appliedKey{}, false
	}
	return appliedKey{owner: ownerKey, item: itemKey}, true
}
