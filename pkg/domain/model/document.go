package model

import (
	"fmt"
	"strings"
)

// NodeType is the type name of a StructuredDocument node. The names follow the
// rich-text editor's JSON schema so documents round-trip without conversion.
type NodeType string

const (
	NodeDoc         NodeType = "doc"
	NodeParagraph   NodeType = "paragraph"
	NodeHeading     NodeType = "heading"
	NodeBulletList  NodeType = "bulletList"
	NodeOrderedList NodeType = "orderedList"
	NodeListItem    NodeType = "listItem"
	NodeBlockquote  NodeType = "blockquote"
	NodeText        NodeType = "text"
	NodeHardBreak   NodeType = "hardBreak"
)

// Node is a block or inline node of a StructuredDocument
type Node struct {
	Type    NodeType       `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// Document is the root node of a chapter's rich content
type Document struct {
	Type    NodeType `json:"type"`
	Content []*Node  `json:"content"`
}

// NewDocument returns a document holding nodes as its blocks
func NewDocument(nodes ...*Node) *Document {
	content := make([]*Node, 0, len(nodes))
	content = append(content, nodes...)
	return &Document{Type: NodeDoc, Content: content}
}

// NewDocumentFromText builds a document with one paragraph per line of text.
// Line structure is kept as is; empty lines become empty paragraphs.
func NewDocumentFromText(text string) *Document {
	doc := NewDocument()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		doc.Content = append(doc.Content, Paragraph(line))
	}
	return doc
}

// Paragraph returns a paragraph node holding text. Empty text yields a paragraph
// without runs since the editor rejects empty text nodes.
func Paragraph(text string) *Node {
	node := &Node{Type: NodeParagraph}
	if text != "" {
		node.Content = []*Node{{Type: NodeText, Text: text}}
	}
	return node
}

// Heading returns a heading node of the given level
func Heading(level int, text string) *Node {
	node := &Node{Type: NodeHeading, Attrs: map[string]any{"level": level}}
	if text != "" {
		node.Content = []*Node{{Type: NodeText, Text: text}}
	}
	return node
}

// ExtractText flattens the document to plain text. Blocks are visited depth first
// and joined by a blank line. A heading yields its own runs followed by a line
// break. Unknown node types are skipped. It never fails; a nil document yields "".
func ExtractText(doc *Document) string {
	if doc == nil {
		return ""
	}
	var blocks []string
	for _, node := range doc.Content {
		blocks = collectBlocks(node, blocks)
	}
	return strings.Join(blocks, "\n\n")
}

func collectBlocks(node *Node, blocks []string) []string {
	if node == nil {
		return blocks
	}
	switch node.Type {
	case NodeParagraph:
		return append(blocks, inlineText(node))
	case NodeHeading:
		return append(blocks, inlineText(node)+"\n")
	case NodeDoc, NodeBulletList, NodeOrderedList, NodeListItem, NodeBlockquote:
		for _, child := range node.Content {
			blocks = collectBlocks(child, blocks)
		}
		return blocks
	default:
		return blocks
	}
}

func inlineText(node *Node) string {
	var sb strings.Builder
	for _, child := range node.Content {
		if child == nil {
			continue
		}
		switch child.Type {
		case NodeText:
			sb.WriteString(child.Text)
		case NodeHardBreak:
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Markdown renders the document as CommonMark. It is used for HTML previews.
func (d *Document) Markdown() string {
	if d == nil {
		return ""
	}
	var blocks []string
	for _, node := range d.Content {
		blocks = appendMarkdown(node, "", blocks)
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func appendMarkdown(node *Node, prefix string, blocks []string) []string {
	if node == nil {
		return blocks
	}
	switch node.Type {
	case NodeParagraph:
		text := escapeMarkdown(inlineText(node))
		if text == "" {
			return blocks
		}
		return append(blocks, prefix+strings.ReplaceAll(text, "\n", "  \n"+prefix))
	case NodeHeading:
		level := headingLevel(node)
		return append(blocks, prefix+strings.Repeat("#", level)+" "+escapeMarkdown(inlineText(node)))
	case NodeBlockquote:
		for _, child := range node.Content {
			blocks = appendMarkdown(child, prefix+"> ", blocks)
		}
		return blocks
	case NodeBulletList, NodeOrderedList:
		var items []string
		for i, item := range node.Content {
			marker := "- "
			if node.Type == NodeOrderedList {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			var inner []string
			if item != nil {
				for _, child := range item.Content {
					inner = appendMarkdown(child, "", inner)
				}
			}
			items = append(items, prefix+marker+strings.Join(inner, " "))
		}
		return append(blocks, strings.Join(items, "\n"))
	default:
		return blocks
	}
}

func headingLevel(node *Node) int {
	level := 1
	switch v := node.Attrs["level"].(type) {
	case int:
		level = v
	case float64:
		level = int(v)
	}
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "<", "&lt;", ">", "&gt;", "[", `\[`, "]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Copy returns a deep copy of the document. A nil document copies to nil.
func (d *Document) Copy() *Document {
	if d == nil {
		return nil
	}
	copied := &Document{Type: d.Type, Content: make([]*Node, len(d.Content))}
	for i, node := range d.Content {
		copied.Content[i] = node.Copy()
	}
	return copied
}

// Copy returns a deep copy of the node
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	copied := &Node{Type: n.Type, Text: n.Text}
	if n.Attrs != nil {
		copied.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			copied.Attrs[k] = v
		}
	}
	if n.Content != nil {
		copied.Content = make([]*Node, len(n.Content))
		for i, child := range n.Content {
			copied.Content[i] = child.Copy()
		}
	}
	return copied
}
