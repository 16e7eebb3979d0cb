package ingest

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// messageParts holds the text extracted from one email message.
type messageParts struct {
	body            string
	attachmentNames []string
	attachmentTexts []string
}

// extractMessageParts pulls the plain-text body and attachment content
// from an email message. Attachments with readable text (plain, csv,
// html) contribute their content; binary attachments contribute only
// their filename, which classification patterns still match against.
func extractMessageParts(msg *mail.Message) (*messageParts, error) {
	parts := &messageParts{}
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, err
		}
		parts.body = string(bodyBytes)
		return parts, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, err
		}
		parts.body = string(bodyBytes)
		return parts, nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, err
		}
		parts.body = string(bodyBytes)
		return parts, nil
	}

	var textContent bytes.Buffer
	mr := multipart.NewReader(msg.Body, boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was readable before the malformed part.
			break
		}

		filename := part.FileName()
		partContentType := strings.ToLower(part.Header.Get("Content-Type"))

		if filename != "" {
			parts.attachmentNames = append(parts.attachmentNames, filename)
			if isTextualPart(partContentType, filename) {
				partBytes, err := io.ReadAll(part)
				if err == nil {
					parts.attachmentTexts = append(parts.attachmentTexts, string(partBytes))
				}
			}
			continue
		}

		if strings.Contains(partContentType, "text/plain") {
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			textContent.Write(partBytes)
			textContent.WriteString("\n")
		}
		// Nested multiparts and other inline parts are skipped.
	}

	parts.body = textContent.String()
	return parts, nil
}

// isTextualPart reports whether an attachment's content is worth feeding
// to the pattern cascade.
func isTextualPart(contentType, filename string) bool {
	if strings.Contains(contentType, "text/") {
		return true
	}
	lower := strings.ToLower(filename)
	for _, ext := range []string{".txt", ".csv", ".htm", ".html", ".edi"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
