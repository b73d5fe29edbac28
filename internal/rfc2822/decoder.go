// Package rfc2822 decodes base64url-encoded RFC 2822 messages into ordered
// headers and body parts.
//
// The parser is deliberately forgiving: malformed input degrades to a
// headerless single-part message instead of failing, so callers can always
// rely on at least one body part being present.
package rfc2822

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// Header is a single ordered name/value pair. Duplicate names are preserved
// as repeated entries in the order they appeared on the wire.
type Header struct {
	Name  string
	Value string
}

// Part is a decoded body part.
type Part struct {
	MimeType string
	Content  []byte
}

// Attachment is a body part carrying a filename or attachment disposition.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// Message is the result of decoding a raw RFC 2822 byte stream.
// Parts is never empty for a successfully decoded message.
type Message struct {
	Headers     []Header
	Parts       []Part
	Attachments []Attachment
}

// Get returns the value of the first header matching name, case-insensitively.
func (m *Message) Get(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Decode decodes a base64url string (padded or unpadded) and parses the
// result as an RFC 2822 message.
func Decode(raw string) (*Message, error) {
	data, err := decodeBase64URL(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base64url data: %w", err)
	}
	return Parse(data), nil
}

// decodeBase64URL accepts the RFC 4648 URL-safe alphabet with optional
// padding; callers are not required to pad.
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// Parse parses decoded bytes into a Message. It never fails: a byte stream
// without a parseable header block becomes a single-part body with whatever
// From/To/Subject headers could be salvaged.
func Parse(data []byte) *Message {
	lines := splitLines(string(data))

	headers, bodyStart, ok := parseHeaderBlock(lines)
	if !ok {
		// No blank-line terminator. Keep the whole stream as the body but
		// salvage a From/To/Subject triple from leading header-shaped lines
		// so callers still have something to display.
		msg := &Message{Headers: salvageHeaders(lines)}
		msg.Parts = []Part{inferPart(string(data))}
		return msg
	}

	msg := &Message{Headers: headers}
	body := strings.Join(lines[bodyStart:], "\r\n")

	mediaType, params := contentType(msg.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		parseMultipart(msg, body, params["boundary"])
		if len(msg.Parts) == 0 {
			// Attachment-only message; keep the parts invariant intact.
			msg.Parts = []Part{{MimeType: "text/plain"}}
		}
		return msg
	}

	msg.Parts = []Part{inferPart(body)}
	return msg
}

func splitLines(s string) []string {
	// RFC 2822 wants CRLF, but tolerate bare LF from sloppy encoders.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

// parseHeaderBlock parses ordered headers up to the blank-line terminator.
// It reports ok=false when no terminator exists.
func parseHeaderBlock(lines []string) (headers []Header, bodyStart int, ok bool) {
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			return headers, i + 1, true
		}

		// Continuation lines fold into the previous header value.
		if len(headers) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			headers[len(headers)-1].Value += " " + strings.TrimSpace(line)
			continue
		}

		name, value, found := cutHeader(line)
		if !found {
			return nil, 0, false
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	return nil, 0, false
}

// cutHeader splits a "Name: value" line. The name must be non-empty and
// contain no whitespace.
func cutHeader(line string) (name, value string, ok bool) {
	name, value, found := strings.Cut(line, ":")
	if !found || name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

// salvageHeaders extracts From, To, and Subject from leading header-shaped
// lines of a malformed message.
func salvageHeaders(lines []string) []Header {
	var headers []Header
	for _, line := range lines {
		name, value, ok := cutHeader(line)
		if !ok {
			break
		}
		switch {
		case strings.EqualFold(name, "From"),
			strings.EqualFold(name, "To"),
			strings.EqualFold(name, "Subject"):
			headers = append(headers, Header{Name: name, Value: value})
		}
	}
	return headers
}

func contentType(value string) (mediaType string, params map[string]string) {
	if value == "" {
		return "", nil
	}
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		return "", nil
	}
	return mediaType, params
}

// inferPart wraps a bare body in a single part, inferring text/html when the
// content starts with an HTML document marker.
func inferPart(body string) Part {
	trimmed := strings.ToLower(strings.TrimSpace(body))
	mimeType := "text/plain"
	if strings.HasPrefix(trimmed, "<html") || strings.HasPrefix(trimmed, "<!doctype") {
		mimeType = "text/html"
	}
	return Part{MimeType: mimeType, Content: []byte(body)}
}

// parseMultipart walks MIME parts, collecting text bodies as parts and
// filename-carrying parts as attachments. Unreadable parts are skipped.
func parseMultipart(msg *Message, body, boundary string) {
	reader := multipart.NewReader(strings.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}

		data, err := io.ReadAll(part)
		if err != nil {
			continue
		}

		partType, _ := contentType(part.Header.Get("Content-Type"))
		disposition := part.Header.Get("Content-Disposition")
		filename := part.FileName()

		switch {
		case filename != "" || strings.Contains(disposition, "attachment"):
			if filename == "" {
				filename = "attachment"
			}
			if partType == "" {
				partType = "application/octet-stream"
			}
			if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
				if decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data))); err == nil {
					data = decoded
				}
			}
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename: filename,
				MimeType: partType,
				Data:     data,
			})
		case partType == "" || strings.HasPrefix(partType, "text/plain"):
			msg.Parts = append(msg.Parts, Part{MimeType: "text/plain", Content: data})
		case strings.HasPrefix(partType, "text/html"):
			msg.Parts = append(msg.Parts, Part{MimeType: "text/html", Content: data})
		}
	}
}
