package include

// Options controls plan compilation
type Options struct {
	// Tracked routes structural writes through the change tracker instead of
	// the descriptor accessors
	Tracked bool
}

// Compile walks a tree depth-first in declaration order and produces its
// executable plan. Slot indexes and collection ids are assigned pre-order on
// two independent cursors shared across the whole tree, so a parent's slot is
// always reserved before any of its descendants' and recompiling the same
// tree yields the identical plan. The numbering is a pure function of tree
// shape; runtime nil slots never affect it.
func Compile(tree *Tree, opts Options) *Plan {
	c := &compiler{tracked: opts.Tracked}
	ops := c.compileNodes(tree.children)
	return &Plan{Ops: ops, Slots: c.slot, Collections: c.collection}
}

// compiler threads the two cursors through the traversal. Compilation is
// single-threaded; the cursors' final values size the positional array and
// the buffer state, so one compilation must run to completion before another
// reads them.
type compiler struct {
	slot       int
	collection int
	tracked    bool
}

func (c *compiler) compileNodes(nodes []*Node) []Op {
	var ops []Op
	for _, n := range nodes {
		ops = append(ops, c.compileNode(n))
	}
	return ops
}

func (c *compiler) compileNode(n *Node) Op {
	rel := n.Relationship

	if rel.IsCollection() {
		id := c.collection
		c.collection++
		items := c.compileNodes(n.children)
		return &CollectionOp{
			ID:           id,
			Relationship: rel,
			Inverse:      rel.Inverse,
			Tracked:      c.tracked,
			Items:        &Plan{Ops: items, Slots: c.slot, Collections: c.collection},
		}
	}

	slot := c.slot
	c.slot++
	return &ReferenceOp{
		Slot:         slot,
		Relationship: rel,
		Inverse:      rel.Inverse,
		Tracked:      c.tracked,
		Nested:       c.compileNodes(n.children),
	}
}
