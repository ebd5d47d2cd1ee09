package report

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockKind is the kind of a layout block extracted from report HTML.
type blockKind int

const (
	blockHeading blockKind = iota
	blockParagraph
	blockFields
	blockList
	blockTable
	blockImages
	blockGroup
)

// block is one unit the PDF renderer lays out. Only the fields relevant to
// kind are set.
type block struct {
	kind     blockKind
	level    int    // heading level, 1 to 6
	text     string // heading and paragraph text
	fields   []field
	items    []string
	header   []string
	rows     [][]string
	figures  []figure
	children []block // unbreakable group content
}

// parsedDocument is the layout of a report HTML document.
type parsedDocument struct {
	title  string
	blocks []block
}

// parseLayout turns report HTML into layout blocks. Elements it does not
// know are flattened into their children.
func parseLayout(doc string) (*parsedDocument, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse report html: %w", err)
	}

	out := &parsedDocument{}
	if t := findFirst(root, atom.Title); t != nil {
		out.title = textContent(t)
	}
	body := findFirst(root, atom.Body)
	if body == nil {
		return out, nil
	}
	out.blocks = collectBlocks(body)
	return out, nil
}

func collectBlocks(parent *html.Node) []block {
	var blocks []block
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.TextNode {
			if t := collapse(n.Data); t != "" {
				blocks = append(blocks, block{kind: blockParagraph, text: t})
			}
			continue
		}
		if n.Type != html.ElementNode {
			continue
		}

		if hasClass(n, "unbreakable") {
			if children := collectBlocks(n); len(children) > 0 {
				blocks = append(blocks, block{kind: blockGroup, children: children})
			}
			continue
		}
		if hasClass(n, "image-pair") {
			if figs := collectFigures(n); len(figs) > 0 {
				blocks = append(blocks, block{kind: blockImages, figures: figs})
			}
			continue
		}

		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			blocks = append(blocks, block{kind: blockHeading, level: int(n.Data[1] - '0'), text: textContent(n)})
		case atom.P:
			if t := textContent(n); t != "" {
				blocks = append(blocks, block{kind: blockParagraph, text: t})
			}
		case atom.Dl:
			blocks = append(blocks, block{kind: blockFields, fields: collectFields(n)})
		case atom.Ul, atom.Ol:
			blocks = append(blocks, block{kind: blockList, items: collectItems(n)})
		case atom.Table:
			header, rows := collectTable(n)
			blocks = append(blocks, block{kind: blockTable, header: header, rows: rows})
		case atom.Figure, atom.Img:
			if f, ok := nodeFigure(n); ok {
				blocks = append(blocks, block{kind: blockImages, figures: []figure{f}})
			}
		case atom.Style, atom.Script, atom.Template:
		default:
			blocks = append(blocks, collectBlocks(n)...)
		}
	}
	return blocks
}

func collectFields(dl *html.Node) []field {
	var fields []field
	for n := dl.FirstChild; n != nil; n = n.NextSibling {
		switch n.DataAtom {
		case atom.Dt:
			fields = append(fields, field{Label: textContent(n)})
		case atom.Dd:
			if len(fields) == 0 || fields[len(fields)-1].Value != "" {
				fields = append(fields, field{})
			}
			fields[len(fields)-1].Value = textContent(n)
		}
	}
	return fields
}

func collectItems(list *html.Node) []string {
	var items []string
	for n := list.FirstChild; n != nil; n = n.NextSibling {
		if n.DataAtom == atom.Li {
			items = append(items, textContent(n))
		}
	}
	return items
}

// collectTable returns the header cells and body rows. A first row made only
// of <th> cells is the header when there is no <thead>.
func collectTable(table *html.Node) (header []string, rows [][]string) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom != atom.Tr {
				walk(c)
				continue
			}
			var cells []string
			allTH := true
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.DataAtom == atom.Th || cell.DataAtom == atom.Td {
					cells = append(cells, textContent(cell))
					allTH = allTH && cell.DataAtom == atom.Th
				}
			}
			if len(cells) == 0 {
				continue
			}
			if header == nil && len(rows) == 0 && allTH {
				header = cells
				continue
			}
			rows = append(rows, cells)
		}
	}
	walk(table)
	return header, rows
}

// collectFigures finds the images below n with their captions.
func collectFigures(n *html.Node) []figure {
	var figs []figure
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if f, ok := nodeFigure(c); ok {
				figs = append(figs, f)
			} else if c.DataAtom != atom.Figure {
				walk(c)
			}
		}
	}
	walk(n)
	return figs
}

// nodeFigure reads a <figure> or a bare <img>. A figure's caption is its
// <figcaption>, or the image alt text.
func nodeFigure(n *html.Node) (figure, bool) {
	switch n.DataAtom {
	case atom.Figure:
		img := findFirst(n, atom.Img)
		if img == nil {
			return figure{}, false
		}
		f := figure{ID: attr(img, AttachmentIDAttr), Caption: attr(img, "alt")}
		if fc := findFirst(n, atom.Figcaption); fc != nil {
			f.Caption = textContent(fc)
		}
		return f, true
	case atom.Img:
		return figure{ID: attr(n, AttachmentIDAttr), Caption: attr(n, "alt")}, true
	}
	return figure{}, false
}

// =============================================================================
// Node helpers
// =============================================================================

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent returns the text below n. <br> becomes a newline and runs of
// whitespace collapse to one space.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = collapse(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
