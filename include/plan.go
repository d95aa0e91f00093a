package include

import "github.com/dubeme/eagerload/metadata"

// Plan is the compiled form of an include tree: an ordered sequence of patch
// operations plus the final cursor values. Slots is the size of the
// positional related-object array every row execution must supply, and
// Collections the number of collection include ids handed out. A plan is
// immutable and reused across rows.
type Plan struct {
	Ops         []Op
	Slots       int
	Collections int
}

// Op is one compiled patch operation, either a *ReferenceOp or a
// *CollectionOp.
type Op interface {
	isOp()
}

// ReferenceOp fixes up one single-valued relationship. Slot indexes the
// row's positional related-object array; a nil slot value short-circuits the
// whole operation including Nested.
type ReferenceOp struct {
	Slot         int
	Relationship *metadata.Relationship
	Inverse      *metadata.Relationship
	Tracked      bool

	// Nested runs against the fetched object when it is non-nil
	Nested []Op
}

func (*ReferenceOp) isOp() {}

// CollectionOp defers one collection-valued relationship to the fixup
// buffer. ID correlates the operation with its buffered load. Items is the
// per-item sub-plan compiled from the node's children; the buffer applies it
// to each yielded item.
type CollectionOp struct {
	ID           int
	Relationship *metadata.Relationship
	Inverse      *metadata.Relationship
	Tracked      bool
	Items        *Plan
}

func (*CollectionOp) isOp() {}
