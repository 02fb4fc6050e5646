package artifacts

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// MinTreeDepth is the minimum number of parent directories a key must have
// to enter the tree: experiment/job_id/region at least.
const MinTreeDepth = 3

// Node is one directory or file in the artifact tree. Files are leaves,
// recognized by a dot in their name and an empty child map.
type Node struct {
	Name     string
	Children map[string]*Node
}

// NewTree returns an empty root node.
func NewTree() *Node {
	return &Node{Name: "/", Children: map[string]*Node{}}
}

// Add inserts a slash-separated object key. Keys without a dotted filename
// or shallower than MinTreeDepth are ignored: partial uploads and bare
// directory markers carry nothing worth browsing.
func (n *Node) Add(key string) {
	dir, file := reverseLastSlash(key)
	if !strings.Contains(file, ".") {
		return
	}
	parts := strings.Split(dir, "/")
	if dir == "" || len(parts) < MinTreeDepth {
		return
	}
	cur := n
	for _, part := range append(parts, file) {
		child, ok := cur.Children[part]
		if !ok {
			child = &Node{Name: part, Children: map[string]*Node{}}
			cur.Children[part] = child
		}
		cur = child
	}
}

// reverseLastSlash splits a key into its directory part and filename.
func reverseLastSlash(key string) (string, string) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

// BuildTree constructs a tree from object keys.
func BuildTree(keys []string) *Node {
	root := NewTree()
	for _, key := range keys {
		root.Add(key)
	}
	return root
}

// AppendLocal walks a local cache directory and inserts every file found,
// so runs downloaded earlier show up alongside remote ones.
func (n *Node) AppendLocal(cacheDir string) error {
	return filepath.WalkDir(cacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(cacheDir, path)
		if err != nil {
			return err
		}
		n.Add(filepath.ToSlash(rel))
		return nil
	})
}

// IsLeaf reports whether the node is a file.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0 && strings.Contains(n.Name, ".")
}

// SortedChildren returns the children in name order, directories first.
func (n *Node) SortedChildren() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, child := range n.Children {
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsLeaf() != out[j].IsLeaf() {
			return !out[i].IsLeaf()
		}
		return out[i].Name < out[j].Name
	})
	return out
}
