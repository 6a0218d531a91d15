package wire

import (
	"encoding/xml"
	"strings"
)

// Node is a generic XML element. Lookups ignore namespaces and tolerate
// repeated children of the same name.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// Name returns the element's local name.
func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	return n.XMLName.Local
}

// Text returns the element's trimmed character data.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content)
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the first non-empty text among the direct children with
// the given name.
func (n *Node) ChildText(name string) string {
	for _, c := range n.ChildrenNamed(name) {
		if t := c.Text(); t != "" {
			return t
		}
	}
	return ""
}

// All follows path from n, fanning out over repeated elements at every
// step, and returns every node at the end of it.
func (n *Node) All(path ...string) []*Node {
	if n == nil {
		return nil
	}
	current := []*Node{n}
	for _, name := range path {
		var next []*Node
		for _, c := range current {
			next = append(next, c.ChildrenNamed(name)...)
		}
		current = next
	}
	return current
}

// PathText returns the first non-empty text at the end of path.
func (n *Node) PathText(path ...string) string {
	for _, c := range n.All(path...) {
		if t := c.Text(); t != "" {
			return t
		}
	}
	return ""
}

// Find returns the first element named name in a depth-first walk,
// including n itself.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	if n.XMLName.Local == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}
