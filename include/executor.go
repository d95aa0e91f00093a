package include

import (
	"context"
	"fmt"

	"github.com/dubeme/eagerload/metadata"
	"github.com/dubeme/eagerload/tracking"
)

// RelatedSource supplies materialized related data during plan execution:
// positional reference slots for a plan's operations and item sequences for
// collection fixups. The query loader is the production implementation.
type RelatedSource interface {
	// Slots materializes the positional related-object array for one owner,
	// sized plan.Slots, nil for legitimately absent relationships
	Slots(ctx context.Context, plan *Plan, owner metadata.Record) ([]any, error)

	// Collection returns the sequence of related items for one owner of a
	// collection operation
	Collection(ctx context.Context, op *CollectionOp, owner metadata.Record) (Sequence, error)
}

// Executor runs compiled plans against materialized rows. Reference fixups
// apply inline; collection fixups are submitted to the buffer and applied
// when the pipeline flushes it, once per row.
type Executor struct {
	tracker *tracking.Tracker
	source  RelatedSource
	buffer  *Buffer
}

// NewExecutor creates an executor. The tracker may be nil when only untracked
// plans are executed; the source and buffer may be nil when the plans carry
// no collection operations.
func NewExecutor(tracker *tracking.Tracker, source RelatedSource, buffer *Buffer) *Executor {
	return &Executor{tracker: tracker, source: source, buffer: buffer}
}

// Buffer returns the executor's collection-fixup buffer
func (e *Executor) Buffer() *Buffer {
	return e.buffer
}

// Apply executes a plan against one row. The owner is the materialized root
// for that row; slots is the row-private positional related-object array the
// materialization pipeline built with the plan's slot numbering. In tracked
// mode the owner must already be tracked.
func (e *Executor) Apply(ctx context.Context, plan *Plan, owner metadata.Record, slots []any) error {
	return e.applyOps(ctx, plan.Ops, owner, slots)
}

func (e *Executor) applyOps(ctx context.Context, ops []Op, owner metadata.Record, slots []any) error {
	for _, op := range ops {
		switch op := op.(type) {
		case *ReferenceOp:
			if err := e.applyReference(ctx, op, owner, slots); err != nil {
				return err
			}
		case *CollectionOp:
			if err := e.submit(op, owner); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown plan operation %T", op)
		}
	}
	return nil
}

func (e *Executor) applyReference(ctx context.Context, op *ReferenceOp, owner metadata.Record, slots []any) error {
	if op.Slot >= len(slots) {
		return fmt.Errorf("fixing up %s.%s: slot %d out of range (%d slots)",
			op.Relationship.Source.Name, op.Relationship.Name, op.Slot, len(slots))
	}

	value := slots[op.Slot]
	if value == nil {
		// Legitimately absent relationship; nothing in this subtree runs
		return nil
	}

	related, ok := value.(metadata.Record)
	if !ok {
		return fmt.Errorf("fixing up %s.%s: slot %d holds %T, want record",
			op.Relationship.Source.Name, op.Relationship.Name, op.Slot, value)
	}
	if related == nil {
		// A typed-nil record counts as an absent relationship too
		return nil
	}

	if op.Tracked {
		if err := e.trackedReferenceFixup(op, owner, related); err != nil {
			return err
		}
	} else {
		op.Relationship.Set(owner, related)
		applyInverse(op.Inverse, related, owner)
	}

	return e.applyOps(ctx, op.Nested, related, slots)
}

func (e *Executor) trackedReferenceFixup(op *ReferenceOp, owner, related metadata.Record) error {
	relatedEntry, err := e.trackRelated(op.Relationship, related)
	if err != nil {
		return err
	}

	ownerEntry, err := e.ownerEntry(op.Relationship, owner)
	if err != nil {
		return err
	}
	ownerEntry.SetRelationSnapshot(op.Relationship, related)

	applyTrackedInverse(relatedEntry, op.Inverse, owner)
	return nil
}

// trackRelated registers a related object with the tracker before any
// snapshot write references it
func (e *Executor) trackRelated(rel *metadata.Relationship, related metadata.Record) (*tracking.Entry, error) {
	if e.tracker == nil {
		return nil, fmt.Errorf("fixing up %s.%s: tracked plan but no tracker configured",
			rel.Source.Name, rel.Name)
	}

	entry, err := e.tracker.Track(rel.Target, related)
	if err != nil {
		return nil, fmt.Errorf("tracking related %s: %w", rel.Target.Name, err)
	}
	return entry, nil
}

func (e *Executor) ownerEntry(rel *metadata.Relationship, owner metadata.Record) (*tracking.Entry, error) {
	entry, ok := e.tracker.Entry(rel.Source, owner)
	if !ok {
		return nil, fmt.Errorf("fixing up %s.%s: %w",
			rel.Source.Name, rel.Name, tracking.ErrUntrackedOwner)
	}
	return entry, nil
}

func (e *Executor) submit(op *CollectionOp, owner metadata.Record) error {
	if e.buffer == nil {
		return fmt.Errorf("collection include %s.%s: no buffer configured",
			op.Relationship.Source.Name, op.Relationship.Name)
	}
	if e.source == nil {
		return fmt.Errorf("collection include %s.%s: no related source configured",
			op.Relationship.Source.Name, op.Relationship.Name)
	}

	source := e.source
	e.buffer.Submit(&CollectionFixup{
		Op:    op,
		Owner: owner,
		Supply: func(ctx context.Context) (Sequence, error) {
			return source.Collection(ctx, op, owner)
		},
	})
	return nil
}

func applyInverse(inv *metadata.Relationship, related, owner metadata.Record) {
	if inv == nil {
		return
	}
	if inv.IsCollection() {
		inv.Add(related, owner)
	} else {
		inv.Set(related, owner)
	}
}

func applyTrackedInverse(relatedEntry *tracking.Entry, inv *metadata.Relationship, owner metadata.Record) {
	if inv == nil {
		return
	}
	if inv.IsCollection() {
		relatedEntry.AddToRelationSnapshot(inv, owner)
	} else {
		relatedEntry.SetRelationSnapshot(inv, owner)
	}
}
