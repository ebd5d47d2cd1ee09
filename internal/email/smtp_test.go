package email

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mimePart struct {
	contentType string
	header      map[string][]string
	body        []byte
}

// flatten walks a MIME tree and returns its leaf parts with the media types
// of every multipart container on the way.
func flatten(t *testing.T, contentType string, body io.Reader) (containers []string, leaves []mimePart) {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	if !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		return nil, []mimePart{{contentType: mediaType, body: data}}
	}

	containers = append(containers, mediaType)
	r := multipart.NewReader(body, params["boundary"])
	for {
		p, err := r.NextRawPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		c, l := flatten(t, p.Header.Get("Content-Type"), p)
		for i := range l {
			if l[i].header == nil {
				l[i].header = p.Header
			}
		}
		containers = append(containers, c...)
		leaves = append(leaves, l...)
	}
	return containers, leaves
}

func parse(t *testing.T, raw []byte) (*mail.Message, []string, []mimePart) {
	t.Helper()
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	containers, leaves := flatten(t, m.Header.Get("Content-Type"), m.Body)
	return m, containers, leaves
}

func TestBuildMessage_TextAndHTML(t *testing.T) {
	raw, err := buildMessage("Constat <noreply@example.fr>", []string{"a@example.fr", "b@example.fr"}, Message{
		Subject:  "Constat d'état : Église",
		TextBody: "Bonjour",
		HTMLBody: "<p>Bonjour</p>",
	})
	require.NoError(t, err)

	m, containers, leaves := parse(t, raw)
	assert.Equal(t, "a@example.fr, b@example.fr", m.Header.Get("To"))

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Constat d'état : Église", subject)

	assert.Equal(t, []string{"multipart/alternative"}, containers)
	require.Len(t, leaves, 2)
	assert.Equal(t, "text/plain", leaves[0].contentType)
	assert.Equal(t, "text/html", leaves[1].contentType)
}

func TestBuildMessage_InlineAndAttached(t *testing.T) {
	photo := bytes.Repeat([]byte{0xff, 0xd8, 0x01}, 100)
	pdf := []byte("%PDF-1.3")

	raw, err := buildMessage("noreply@example.fr", []string{"a@example.fr"}, Message{
		Subject:  "Alerte",
		TextBody: "texte",
		HTMLBody: `<img src="cid:alert-1.jpg">`,
		Attachments: []Attachment{
			{Filename: "alert-1.jpg", ContentType: "image/jpeg", Data: photo, ContentID: "alert-1.jpg"},
			{Filename: "constat.pdf", ContentType: "application/pdf", Data: pdf},
			{Filename: "empty.jpg", ContentType: "image/jpeg", ContentID: "alert-2.jpg"},
		},
	})
	require.NoError(t, err)

	_, containers, leaves := parse(t, raw)
	assert.Equal(t, []string{"multipart/mixed", "multipart/related", "multipart/alternative"}, containers)
	require.Len(t, leaves, 4)

	inline := leaves[2]
	assert.Equal(t, "image/jpeg", inline.contentType)
	assert.Equal(t, "<alert-1.jpg>", inline.header["Content-Id"][0])
	assert.True(t, strings.HasPrefix(inline.header["Content-Disposition"][0], "inline"))
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(inline.body), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, photo, decoded)

	attached := leaves[3]
	assert.Equal(t, "application/pdf", attached.contentType)
	assert.Contains(t, attached.header["Content-Disposition"][0], `filename=constat.pdf`)

	for _, line := range strings.Split(string(inline.body), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestMessageRecipients(t *testing.T) {
	m := Message{To: []string{" a@example.fr ", "", "  "}}
	assert.Equal(t, []string{"a@example.fr"}, m.recipients())
}

func TestLogSender_NoRecipients(t *testing.T) {
	s := NewLogSender(testLogger())
	assert.ErrorIs(t, s.Send(t.Context(), Message{}), ErrNoRecipients)
	assert.NoError(t, s.Send(t.Context(), Message{To: []string{"a@example.fr"}}))
}
