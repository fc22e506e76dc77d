package report

import (
	"bytes"
	_ "embed"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tmaxmax/abiprobe/pkg/probe"
	"github.com/tmaxmax/abiprobe/pkg/traverse"
)

//go:embed templates/matrix.html
var htmlSkeleton []byte

// HTML renders m as a standalone HTML page. The page skeleton is parsed and
// the placeholders it contains are filled with the matrix content.
func HTML(m *probe.Matrix) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(htmlSkeleton))
	if err != nil {
		return nil, fmt.Errorf("report: failed to parse page skeleton: %w", err)
	}

	find := func(id string) (*html.Node, error) {
		n := traverse.Find(root, traverse.ID(id))
		if n == nil {
			return nil, fmt.Errorf("report: page skeleton has no #%s", id)
		}
		return n, nil
	}

	consumers, err := find("consumers")
	if err != nil {
		return nil, err
	}
	for _, s := range m.Toolchains {
		consumers.AppendChild(element(atom.Th, s.ID))
	}

	producers, err := find("producers")
	if err != nil {
		return nil, err
	}
	for p, row := range m.Cells {
		tr := element(atom.Tr, "")
		tr.AppendChild(element(atom.Th, m.Toolchains[p].ID))

		for _, r := range row {
			td := element(atom.Td, CellText(r), html.Attribute{Key: "class", Val: r.Outcome.String()})
			if r.Detail != "" {
				td.Attr = append(td.Attr, html.Attribute{Key: "title", Val: r.Detail})
			}
			tr.AppendChild(td)
		}

		producers.AppendChild(tr)
	}

	dl, err := find("legend")
	if err != nil {
		return nil, err
	}
	for _, e := range legend {
		dl.AppendChild(element(atom.Dt, e.text))
		dl.AppendChild(element(atom.Dd, e.meaning))
	}

	if err := fillList(root, "libraries", "classifications", libraryItems(m)); err != nil {
		return nil, err
	}

	var items []string
	for _, f := range failures(m) {
		items = append(items, fmt.Sprintf("%s -> %s: %s", f.producer, f.consumer, f.detail))
	}
	if err := fillList(root, "failures", "failure-list", items); err != nil {
		return nil, err
	}

	p, err := find("summary")
	if err != nil {
		return nil, err
	}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: summary(m)})

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("report: failed to render page: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func libraryItems(m *probe.Matrix) []string {
	var items []string
	for i, lib := range m.Libraries {
		if lib != nil {
			items = append(items, m.Toolchains[i].ID+": "+lib.String())
		}
	}
	return items
}

// fillList appends items to the list with the given id, removing the
// enclosing section when there is nothing to show.
func fillList(root *html.Node, sectionID, listID string, items []string) error {
	section := traverse.Find(root, traverse.ID(sectionID))
	if section == nil {
		return fmt.Errorf("report: page skeleton has no #%s", sectionID)
	}

	if len(items) == 0 {
		section.Parent.RemoveChild(section)
		return nil
	}

	list := traverse.Find(section, traverse.ID(listID))
	if list == nil {
		return fmt.Errorf("report: page skeleton has no #%s", listID)
	}

	for _, item := range items {
		list.AppendChild(element(atom.Li, item))
	}
	return nil
}

func element(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}
