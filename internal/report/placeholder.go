package report

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AttachmentIDAttr marks an image placeholder in rendered reports.
const AttachmentIDAttr = "data-attachment-id"

// ImageResolver maps an attachment id to an image source.
// ok is false when the id cannot be resolved.
type ImageResolver interface {
	ResolveImage(id string) (src string, ok bool)
}

// URLMap resolves ids from a precomputed map of URLs.
type URLMap map[string]string

func (m URLMap) ResolveImage(id string) (string, bool) {
	u, ok := m[id]
	return u, ok && u != ""
}

// DataURIs resolves ids to inline data: URIs built from image bytes.
type DataURIs map[string]ImageData

func (m DataURIs) ResolveImage(id string) (string, bool) {
	img, ok := m[id]
	if !ok || len(img.Data) == 0 {
		return "", false
	}
	ct := img.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(img.Data), true
}

// ResolveImagePlaceholders sets the src of every <img> carrying a
// data-attachment-id the resolver knows. Unresolved placeholders and every
// other token are written back byte for byte.
func ResolveImagePlaceholders(doc string, resolver ImageResolver) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var out strings.Builder
	out.Grow(len(doc))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		// Token() lower-cases the raw buffer in place, so copy it first.
		raw := string(z.Raw())
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.WriteString(raw)
			continue
		}

		tok := z.Token()
		id := attachmentID(tok)
		if id == "" {
			out.WriteString(raw)
			continue
		}
		src, ok := resolver.ResolveImage(id)
		if !ok {
			out.WriteString(raw)
			continue
		}
		setAttr(&tok, "src", src)
		out.WriteString(tok.String())
	}
	return out.String()
}

// AttachmentIDs lists the attachment ids referenced by image placeholders,
// in document order and without duplicates.
func AttachmentIDs(doc string) []string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var ids []string
	seen := make(map[string]bool)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return ids
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		if id := attachmentID(z.Token()); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
}

func attachmentID(tok html.Token) string {
	if tok.DataAtom != atom.Img {
		return ""
	}
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == AttachmentIDAttr {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func setAttr(tok *html.Token, key, val string) {
	for i, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			tok.Attr[i].Val = val
			return
		}
	}
	tok.Attr = append(tok.Attr, html.Attribute{Key: key, Val: val})
}
