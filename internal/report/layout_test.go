package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayout(t *testing.T) {
	doc := `<!DOCTYPE html><html><head><title>Constat – Test</title><style>p{}</style></head><body>
<h1>Titre</h1>
<section class="unbreakable"><h2>Bloc</h2><dl><dt>Clé</dt><dd>Valeur</dd><dd>orpheline</dd></dl></section>
<p>  Un   paragraphe<br>sur deux lignes </p>
<ul><li>un</li><li>deux</li></ul>
<table><tr><th>A</th><th>B</th></tr><tr><td>1</td><td>2</td></tr></table>
<div class="image-pair"><figure><img data-attachment-id="x" alt="alt x"><figcaption>Légende</figcaption></figure><figure><img data-attachment-id="y" alt="alt y"></figure></div>
<script>ignored()</script>
</body></html>`

	parsed, err := parseLayout(doc)
	require.NoError(t, err)
	assert.Equal(t, "Constat – Test", parsed.title)
	require.Len(t, parsed.blocks, 6)

	assert.Equal(t, blockHeading, parsed.blocks[0].kind)
	assert.Equal(t, 1, parsed.blocks[0].level)

	group := parsed.blocks[1]
	assert.Equal(t, blockGroup, group.kind)
	require.Len(t, group.children, 2)
	assert.Equal(t, 2, group.children[0].level)
	assert.Equal(t, []field{{"Clé", "Valeur"}, {"", "orpheline"}}, group.children[1].fields)

	assert.Equal(t, "Un paragraphe\nsur deux lignes", parsed.blocks[2].text)
	assert.Equal(t, []string{"un", "deux"}, parsed.blocks[3].items)

	table := parsed.blocks[4]
	assert.Equal(t, []string{"A", "B"}, table.header)
	assert.Equal(t, [][]string{{"1", "2"}}, table.rows)

	images := parsed.blocks[5]
	assert.Equal(t, blockImages, images.kind)
	assert.Equal(t, []figure{{ID: "x", Caption: "Légende"}, {ID: "y", Caption: "alt y"}}, images.figures)
}

func TestParseLayout_RenderedReport(t *testing.T) {
	doc, err := RenderReportHTML(sampleBundle())
	require.NoError(t, err)

	parsed, err := parseLayout(doc)
	require.NoError(t, err)
	assert.Contains(t, parsed.title, "Église Saint-Martin")

	var figures, tables int
	var walk func([]block)
	walk = func(bs []block) {
		for _, b := range bs {
			switch b.kind {
			case blockImages:
				figures += len(b.figures)
			case blockTable:
				tables++
			case blockGroup:
				walk(b.children)
			}
		}
	}
	walk(parsed.blocks)

	assert.Equal(t, 4, figures)
	assert.Equal(t, 1, tables)
}

func TestTextContent_EmptyElement(t *testing.T) {
	parsed, err := parseLayout("<p>   </p><p></p>")
	require.NoError(t, err)
	assert.Empty(t, parsed.blocks)
}
