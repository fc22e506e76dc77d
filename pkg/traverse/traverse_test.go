package traverse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/tmaxmax/abiprobe/pkg/traverse"
)

const document = `<html><body>
<table id="matrix">
<tr><th>a</th><td class="ok">one</td></tr>
<tr><th>b</th><td>two <b>three</b></td></tr>
</table>
</body></html>`

func parse(t *testing.T) *html.Node {
	t.Helper()

	root, err := html.Parse(strings.NewReader(document))
	require.NoError(t, err)
	return root
}

func TestDepth(t *testing.T) {
	var tags []string
	traverse.Depth(parse(t), func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			tags = append(tags, n.Data)
		}
		return n.Data != "tbody"
	})

	require.Equal(t, []string{"html", "head", "body", "table", "tbody"}, tags)
}

func TestFind(t *testing.T) {
	root := parse(t)

	table := traverse.Find(root, traverse.ID("matrix"))
	require.NotNil(t, table)
	require.Equal(t, "table", table.Data)

	td := traverse.Find(table, traverse.Element("td"))
	require.NotNil(t, td)
	require.Equal(t, "one", traverse.Text(td))

	class, ok := traverse.Attr(td, "class")
	require.True(t, ok)
	require.Equal(t, "ok", class)

	_, ok = traverse.Attr(td, "id")
	require.False(t, ok)

	require.Nil(t, traverse.Find(root, traverse.ID("missing")))
}

func TestFindAll(t *testing.T) {
	cells := traverse.FindAll(parse(t), traverse.Element("td"))
	require.Len(t, cells, 2)
	require.Equal(t, "two three", traverse.Text(cells[1]))

	require.Len(t, traverse.FindAll(parse(t), traverse.Element("th")), 2)
	require.Empty(t, traverse.FindAll(parse(t), traverse.Element("ul")))
}
