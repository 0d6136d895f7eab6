package stl

import (
	"strings"
	"testing"
)

func TestNodeDescription(t *testing.T) {
	tree, err := BuildFlatTree(handLeaves())
	if err != nil {
		t.Fatal(err)
	}
	root := tree.nodeDescription(0, []string{"age", "income"})
	if !strings.Contains(root, "age < 2.00000") || !strings.Contains(root, "nan: L") || !strings.Contains(root, "# 6") {
		t.Fatalf("unexpected root label %q", root)
	}
	leaf := tree.nodeDescription(4, nil)
	if !strings.Contains(leaf, "leaf: 2") || !strings.Contains(leaf, "4.0000") {
		t.Fatalf("unexpected leaf label %q", leaf)
	}
	if _, ok := GraphFormats["svg"]; !ok {
		t.Fatal("svg must be a known figure type")
	}
}
