/*
Package traverse implements tree traversals for the x/net/html parsed HTML trees.
*/
package traverse

import "golang.org/x/net/html"

// Depth performs a depth-first traversal over a parsed HTML document.
// If the visitor function returns false, traversal is stopped.
func Depth(root *html.Node, visitor func(*html.Node) bool) {
	stack := []*html.Node{root}

	for l := len(stack); l > 0; l = len(stack) {
		node := stack[l-1]
		stack = stack[:l-1]

		if !visitor(node) {
			break
		}

		for next := node.LastChild; next != nil; next = next.PrevSibling {
			stack = append(stack, next)
		}
	}
}

// Find returns the first node, in depth-first order, for which match returns true.
func Find(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node

	Depth(root, func(n *html.Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})

	return found
}

// FindAll returns all the nodes for which match returns true, in depth-first order.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node

	Depth(root, func(n *html.Node) bool {
		if match(n) {
			found = append(found, n)
		}
		return true
	})

	return found
}

// Element matches element nodes with the given tag name.
func Element(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// ID matches the element with the given id attribute.
func ID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attr(n, "id")
		return ok && v == id
	}
}

// Attr returns the value of the node's attribute with the given key.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Text concatenates the text nodes under n.
func Text(n *html.Node) string {
	var text []byte

	Depth(n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			text = append(text, n.Data...)
		}
		return true
	})

	return string(text)
}
