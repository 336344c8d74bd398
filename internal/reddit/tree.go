package reddit

import "github.com/harvestlab/reddit-harvester/internal/models"

// Node is an element of a comment tree: either a *CommentNode or a *ListingNode
type Node interface {
	isNode()
}

// CommentNode is a comment with its optional replies
type CommentNode struct {
	Comment models.Comment
	Replies *ListingNode
}

// ListingNode is an ordered sequence of child nodes
type ListingNode struct {
	Children []Node
}

func (*CommentNode) isNode() {}
func (*ListingNode) isNode() {}

// Flatten lists every comment of the tree in pre-order, siblings in received order.
// Duplicates are kept.
func Flatten(root Node) []models.Comment {
	var out []models.Comment
	flatten(root, &out)
	return out
}

func flatten(n Node, out *[]models.Comment) {
	switch n := n.(type) {
	case *CommentNode:
		if n == nil {
			return
		}
		*out = append(*out, n.Comment)
		if n.Replies != nil {
			flatten(n.Replies, out)
		}
	case *ListingNode:
		if n == nil {
			return
		}
		for _, child := range n.Children {
			flatten(child, out)
		}
	}
}
