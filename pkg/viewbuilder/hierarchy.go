package viewbuilder

// Node is one entry in a dimension's hierarchy tree: a reference value plus
// the children that name it as their parent.
type Node struct {
	Reference string
	Children  []*Node
}

// BuildTree implements the pure hierarchical transform over the
// reference/parent pairs that filter_table records (BuildFilterIndex copies
// those pairs by SQL and does not call it): every reference becomes a node; every child reference attaches
// to the parent node it names; references named by no parent become roots.
// A parent reference with no matching node (a dangling hierarchy pointer) is
// treated as absent, so its children become roots too — hierarchy is
// advisory for the filter tree, not a referential-integrity constraint.
func BuildTree(references []string, parentOf map[string]string) []*Node {
	nodes := make(map[string]*Node, len(references))
	for _, ref := range references {
		nodes[ref] = &Node{Reference: ref}
	}

	var roots []*Node
	for _, ref := range references {
		parentRef, hasParent := parentOf[ref]
		if !hasParent || parentRef == "" {
			roots = append(roots, nodes[ref])
			continue
		}
		parent, ok := nodes[parentRef]
		if !ok {
			roots = append(roots, nodes[ref])
			continue
		}
		parent.Children = append(parent.Children, nodes[ref])
	}
	return roots
}
