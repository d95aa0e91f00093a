package query

import (
	"fmt"
	"strings"

	"github.com/dubeme/eagerload/include"
	"github.com/dubeme/eagerload/metadata"
)

// ParseIncludes builds an include tree from dotted relation paths (e.g.
// "posts" or "posts.comments") rooted at the given entity type. Paths sharing
// a prefix merge into one node; path order fixes traversal order and with it
// the compiled slot and collection id assignment.
func ParseIncludes(root *metadata.EntityType, paths ...string) (*include.Tree, error) {
	tree := include.NewTree(root)
	for _, path := range paths {
		if err := addPath(tree, path); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func addPath(tree *include.Tree, path string) error {
	segments := strings.Split(path, ".")
	current := tree.Root
	var node *include.Node

	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("invalid include path %q", path)
		}

		rel, err := current.Relationship(segment)
		if err != nil {
			return fmt.Errorf("include path %q: %w", path, err)
		}

		if i == 0 {
			node = tree.Child(rel)
		} else {
			node = node.Child(rel)
		}
		current = rel.Target
	}

	return nil
}
