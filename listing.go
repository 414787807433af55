package m4b

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// TreeNode is one line of a content listing.
type TreeNode struct {
	Label    string
	Children []*TreeNode
}

// ListContents returns a display tree of d: the root is labelled "/",
// directories "name/", and files show name, length and offset in fixed-width
// columns. Subdirectories are listed before files.
func (d *Directory) ListContents() *TreeNode {
	node := &TreeNode{Label: "/"}
	if !d.root {
		node.Label = d.Name + "/"
	}
	node.Children = make([]*TreeNode, 0, len(d.Subdirs)+len(d.Files))
	for _, sub := range d.Subdirs {
		node.Children = append(node.Children, sub.ListContents())
	}
	for _, f := range d.Files {
		node.Children = append(node.Children, &TreeNode{Label: fileLabel(f)})
	}
	return node
}

func fileLabel(f *File) string {
	return fmt.Sprintf("%-60s %15s %15s",
		f.Name,
		humanize.Comma(int64(f.Length)),
		humanize.Comma(int64(f.Offset)))
}

// Print writes the tree to w, one node per line, using "`- " for the last
// child at each level and "|- " for the others.
func (n *TreeNode) Print(w io.Writer) error {
	return n.print(w, "", true)
}

func (n *TreeNode) print(w io.Writer, prefix string, last bool) error {
	connector, indent := "|- ", "|  "
	if last {
		connector, indent = "`- ", "   "
	}
	if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, connector, n.Label); err != nil {
		return err
	}
	prefix += indent
	for i, child := range n.Children {
		if err := child.print(w, prefix, i == len(n.Children)-1); err != nil {
			return err
		}
	}
	return nil
}
