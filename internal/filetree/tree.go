// Package filetree rebuilds a navigable directory tree from the flat,
// slash-separated path list of a skill directory.
package filetree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Separator splits path segments.
const Separator = "/"

// Entry is one element of a flat file listing. Ancestor directories of Path
// need not be listed themselves.
type Entry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"isDirectory"`
	Size  int64  `json:"size"`
}

// Node is a directory or file in the built tree.
type Node struct {
	Name     string  `json:"name"`
	FullPath string  `json:"fullPath"`
	IsDir    bool    `json:"isDirectory"`
	Size     int64   `json:"size"`
	Children []*Node `json:"children"`
}

// Build converts entries into a tree. At every level directories come before
// files and each group is ordered by name. The result does not depend on the
// order of entries.
func Build(entries []Entry) []*Node {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsDir != sorted[j].IsDir {
			return sorted[i].IsDir
		}
		return sorted[i].Path < sorted[j].Path
	})

	root := &Node{IsDir: true}
	dirs := make(map[string]*Node)

	for _, e := range sorted {
		parts := splitPath(e.Path)
		if len(parts) == 0 {
			continue
		}

		parent := root
		current := ""
		for i, part := range parts {
			current = join(current, part)
			if i == len(parts)-1 && !e.IsDir {
				if _, isDir := dirs[current]; isDir {
					// A directory already owns this path.
					break
				}
				parent.Children = append(parent.Children, &Node{
					Name:     part,
					FullPath: current,
					Size:     e.Size,
					Children: []*Node{},
				})
				break
			}

			dir, ok := dirs[current]
			if !ok {
				dir = &Node{
					Name:     part,
					FullPath: current,
					IsDir:    true,
					Children: []*Node{},
				}
				dirs[current] = dir
				parent.Children = append(parent.Children, dir)
			}
			parent = dir
		}
	}

	sortNodes(root.Children)
	if root.Children == nil {
		return []*Node{}
	}
	return root.Children
}

// Less orders directories before files, then by name.
func Less(a, b *Node) bool {
	if a.IsDir != b.IsDir {
		return a.IsDir
	}
	return a.Name < b.Name
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool { return Less(nodes[i], nodes[j]) })
	for _, n := range nodes {
		if n.IsDir {
			sortNodes(n.Children)
		}
	}
}

func splitPath(p string) []string {
	raw := strings.Split(p, Separator)
	parts := raw[:0]
	for _, s := range raw {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	return parts
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + Separator + name
}

// Walk visits every node depth-first in tree order. Returning false from fn
// skips the node's children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(*Node, int) bool) {
	for _, n := range nodes {
		if fn(n, depth) && n.IsDir {
			walk(n.Children, depth+1, fn)
		}
	}
}

// Find returns the node at fullPath, or nil.
func Find(nodes []*Node, fullPath string) *Node {
	var found *Node
	Walk(nodes, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.FullPath == fullPath {
			found = n
			return false
		}
		return n.IsDir && strings.HasPrefix(fullPath, n.FullPath+Separator)
	})
	return found
}

// FirstFile returns the file at preferred if it exists, otherwise the first
// file in tree order. It returns nil for a tree without files.
func FirstFile(nodes []*Node, preferred string) *Node {
	if preferred != "" {
		if n := Find(nodes, preferred); n != nil && !n.IsDir {
			return n
		}
	}
	var first *Node
	Walk(nodes, func(n *Node, _ int) bool {
		if first != nil {
			return false
		}
		if !n.IsDir {
			first = n
		}
		return true
	})
	return first
}

// Fprint writes an indented listing of the tree to w.
func Fprint(w io.Writer, nodes []*Node) error {
	var err error
	Walk(nodes, func(n *Node, depth int) bool {
		if err != nil {
			return false
		}
		indent := strings.Repeat("  ", depth)
		if n.IsDir {
			_, err = fmt.Fprintf(w, "%s%s/\n", indent, n.Name)
		} else {
			_, err = fmt.Fprintf(w, "%s%s (%d B)\n", indent, n.Name, n.Size)
		}
		return true
	})
	return err
}
