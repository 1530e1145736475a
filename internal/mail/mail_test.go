package mail

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-message/mail"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func buildMessage(t *testing.T, attachment []byte, filename string) []byte {
	t.Helper()

	var h mail.Header
	h.SetDate(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	h.SetAddressList("From", []*mail.Address{{Address: "noreply-dmarc@example.net"}})
	h.SetAddressList("To", []*mail.Address{{Address: "dmarc@example.com"}})
	h.SetSubject("Report Domain: example.com")

	var b bytes.Buffer
	mw, err := mail.CreateWriter(&b, h)
	require.NoError(t, err)

	tw, err := mw.CreateInline()
	require.NoError(t, err)
	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain")
	w, err := tw.CreatePart(th)
	require.NoError(t, err)
	_, err = io.WriteString(w, "This is an aggregate report.")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, tw.Close())

	if attachment != nil {
		var ah mail.AttachmentHeader
		ah.Set("Content-Type", "application/gzip")
		ah.SetFilename(filename)
		w, err = mw.CreateAttachment(ah)
		require.NoError(t, err)
		_, err = w.Write(attachment)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	require.NoError(t, mw.Close())
	return b.Bytes()
}

func TestExtractAttachments(t *testing.T) {
	t.Parallel()

	content := gzipBytes(t, "<feedback></feedback>")
	msg := buildMessage(t, content, "example.net!example.com!1704067200!1704153599.xml.gz")

	attachments, err := ExtractAttachments(bytes.NewReader(msg), log.New(io.Discard))
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "example.net!example.com!1704067200!1704153599.xml.gz", attachments[0].Filename)
	assert.Equal(t, content, attachments[0].Content)
}

func TestExtractAttachmentsNone(t *testing.T) {
	t.Parallel()

	msg := buildMessage(t, nil, "")
	_, err := ExtractAttachments(bytes.NewReader(msg), log.New(io.Discard))
	require.ErrorIs(t, err, ErrNoAttachment)
}

func TestExtractAttachmentsPlainMessage(t *testing.T) {
	t.Parallel()

	msg := "Subject: hello\r\nContent-Type: text/plain\r\n\r\njust some text\r\n"
	_, err := ExtractAttachments(strings.NewReader(msg), log.New(io.Discard))
	require.ErrorIs(t, err, ErrNoAttachment)
}
