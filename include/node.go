package include

import "github.com/dubeme/eagerload/metadata"

// Node is one relationship step in an include tree. Children describe nested
// include paths rooted at the relationship's target type; their declaration
// order fixes traversal and index order and is therefore significant.
type Node struct {
	Relationship *metadata.Relationship
	children     []*Node
}

// Child returns the existing child for rel, or appends and returns a new one.
// Paths are merged, so a relationship appears at most once among the children
// of any single node. Trees only grow; there is no removal.
func (n *Node) Child(rel *metadata.Relationship) *Node {
	child, children := mergeChild(n.children, rel)
	n.children = children
	return child
}

// Children returns the child nodes in declaration order
func (n *Node) Children() []*Node {
	return n.children
}

// Tree is an include tree rooted at a query's primary entity type. It is
// built once per query shape and read arbitrarily many times by the compiler.
type Tree struct {
	Root     *metadata.EntityType
	children []*Node
}

// NewTree creates an empty include tree for the given root type
func NewTree(root *metadata.EntityType) *Tree {
	return &Tree{Root: root}
}

// Child returns the existing top-level node for rel, or appends a new one,
// with the same merge semantics as Node.Child
func (t *Tree) Child(rel *metadata.Relationship) *Node {
	child, children := mergeChild(t.children, rel)
	t.children = children
	return child
}

// Children returns the top-level nodes in declaration order
func (t *Tree) Children() []*Node {
	return t.children
}

func mergeChild(children []*Node, rel *metadata.Relationship) (*Node, []*Node) {
	for _, child := range children {
		if child.Relationship == rel {
			return child, children
		}
	}
	child := &Node{Relationship: rel}
	return child, append(children, child)
}
