package viewbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTree_RootsAndChildren(t *testing.T) {
	refs := []string{"K02000001", "K03000001", "K04000001"}
	parentOf := map[string]string{
		"K03000001": "K02000001",
		"K04000001": "K02000001",
	}

	roots := BuildTree(refs, parentOf)
	if assert.Len(t, roots, 1) {
		root := roots[0]
		assert.Equal(t, "K02000001", root.Reference)
		assert.Len(t, root.Children, 2)
	}
}

func TestBuildTree_DanglingParentBecomesRoot(t *testing.T) {
	refs := []string{"A", "B"}
	parentOf := map[string]string{"B": "MISSING"}

	roots := BuildTree(refs, parentOf)
	assert.Len(t, roots, 2)
}

func TestBuildTree_NoHierarchyAllRoots(t *testing.T) {
	refs := []string{"A", "B", "C"}
	roots := BuildTree(refs, map[string]string{})
	assert.Len(t, roots, 3)
}
