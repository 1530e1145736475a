package mail

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-message/mail"
	"github.com/firefart/dmarcreport/internal/helper"

	// needed to handle other charsets too
	_ "github.com/emersion/go-message/charset"
)

// ErrNoAttachment is returned for messages without a report attachment
var ErrNoAttachment = errors.New("message does not contain a report attachment")

// Attachment is a report file found in a message
type Attachment struct {
	Filename string
	Content  []byte
}

// ExtractAttachments returns all attachments of a message in the order
// they appear. Inline parts are only returned if they look like a gzip or
// zip file, some reporters inline the report instead of attaching it.
func ExtractAttachments(r io.Reader, logger *log.Logger) ([]Attachment, error) {
	m, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create reader: %w", err)
	}
	defer m.Close()
	logger.Debug("reader created")

	logger.Debugf("Date: %s", m.Header.Get("Date"))
	logger.Debugf("From: %s", m.Header.Get("From"))
	logger.Debugf("To: %s", m.Header.Get("To"))
	logger.Debugf("Subject: %s", m.Header.Get("Subject"))

	var attachments []Attachment
	for {
		p, err := m.NextPart()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("could not get next part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("could not read inlineheader body: %w", err)
			}

			// sometimes the attachment is inlined so we check the magic bytes
			if !helper.IsSupportedArchive(b) {
				logger.Debugf("skipping inline part with %d bytes", len(b))
				continue
			}
			logger.Info("found inline attachment")

			filename := "report" + helper.ArchiveExtension(b)
			// try to get attachment filename from headers
			if _, params, err := h.ContentDisposition(); err == nil && params["filename"] != "" {
				filename = params["filename"]
			}
			attachments = append(attachments, Attachment{Filename: filename, Content: b})
		case *mail.AttachmentHeader:
			filename, err := h.Filename()
			if err != nil {
				return nil, fmt.Errorf("could not get attachment filename: %w", err)
			}

			b, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("could not read attachment: %w", err)
			}
			if filename == "" {
				filename = "report" + helper.ArchiveExtension(b)
			}
			logger.Infof("Got attachment: %s", filename)
			attachments = append(attachments, Attachment{Filename: filename, Content: b})
		default:
			logger.Infof("No header type implemented: %v", p.Header)
		}
	}

	if len(attachments) == 0 {
		return nil, ErrNoAttachment
	}
	return attachments, nil
}
