// Package mailbox implements the per-session mail store behind the Gmail
// simulator: message storage, id/thread allocation, labels, search, and
// pagination.
//
// A Mailbox has no locking of its own; it is owned by exactly one session
// and all access goes through that session's mutex.
package mailbox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/wiresim/wiresim/internal/rfc2822"
)

// ErrNotFound is returned when a message or attachment id is unknown.
var ErrNotFound = errors.New("message not found")

// System labels applied by send and import.
const (
	LabelSent   = "SENT"
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
)

// Attachment is a stored attachment, addressable independently of its
// message.
type Attachment struct {
	ID       string
	Filename string
	MimeType string
	Data     []byte
}

// Message is a stored mail message. ID and ThreadID never change after
// creation; LabelIDs mutate only through Modify.
type Message struct {
	ID           string
	ThreadID     string
	Headers      []rfc2822.Header
	Parts        []rfc2822.Part
	Attachments  []Attachment
	LabelIDs     []string
	Snippet      string
	InternalDate int64
	SizeEstimate int64

	// Seq is the monotonic per-mailbox sequence number used for ordering.
	Seq int64
}

// Header returns the value of the first header matching name.
func (m *Message) Header(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HasLabel reports whether the message carries the given label.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// Mailbox holds all mail state for one session.
type Mailbox struct {
	seq      int64
	messages []*Message // insertion order
	byID     map[string]*Message
}

// New returns an empty mailbox.
func New() *Mailbox {
	return &Mailbox{byID: make(map[string]*Message)}
}

// Len returns the number of stored messages.
func (b *Mailbox) Len() int {
	return len(b.messages)
}

// Send stores a freshly sent message: new id, thread id equal to the id,
// and the SENT label. Every sent message starts its own thread.
func (b *Mailbox) Send(parsed *rfc2822.Message, rawSize int) *Message {
	return b.store(parsed, rawSize, []string{LabelSent})
}

// Import stores an imported message. The given labels are applied as an
// ordered set when non-empty; otherwise the INBOX+UNREAD defaults apply.
func (b *Mailbox) Import(parsed *rfc2822.Message, rawSize int, labels []string) *Message {
	if len(labels) == 0 {
		labels = []string{LabelInbox, LabelUnread}
	}
	return b.store(parsed, rawSize, dedupe(labels))
}

func (b *Mailbox) store(parsed *rfc2822.Message, rawSize int, labels []string) *Message {
	b.seq++
	id := newID()
	msg := &Message{
		ID:           id,
		ThreadID:     id,
		Headers:      parsed.Headers,
		Parts:        parsed.Parts,
		LabelIDs:     labels,
		Snippet:      snippet(parsed.Parts),
		InternalDate: time.Now().UnixMilli(),
		SizeEstimate: int64(rawSize),
		Seq:          b.seq,
	}
	for _, att := range parsed.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{
			ID:       newID(),
			Filename: att.Filename,
			MimeType: att.MimeType,
			Data:     att.Data,
		})
	}
	b.messages = append(b.messages, msg)
	b.byID[id] = msg
	return msg
}

// Get returns the message with the given id.
func (b *Mailbox) Get(id string) (*Message, error) {
	msg, ok := b.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

// Modify applies label additions and removals as idempotent ordered-set
// operations and returns the updated message.
func (b *Mailbox) Modify(id string, add, remove []string) (*Message, error) {
	msg, ok := b.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, label := range add {
		if !msg.HasLabel(label) {
			msg.LabelIDs = append(msg.LabelIDs, label)
		}
	}
	for _, label := range remove {
		for i, l := range msg.LabelIDs {
			if l == label {
				msg.LabelIDs = append(msg.LabelIDs[:i], msg.LabelIDs[i+1:]...)
				break
			}
		}
	}
	return msg, nil
}

// Attachment returns a stored attachment, verifying it belongs to the given
// message.
func (b *Mailbox) Attachment(messageID, attachmentID string) (*Attachment, error) {
	msg, ok := b.byID[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range msg.Attachments {
		if msg.Attachments[i].ID == attachmentID {
			return &msg.Attachments[i], nil
		}
	}
	return nil, ErrNotFound
}

// List returns messages in reverse-insertion order (most recent first).
func (b *Mailbox) List() []*Message {
	out := make([]*Message, 0, len(b.messages))
	for i := len(b.messages) - 1; i >= 0; i-- {
		out = append(out, b.messages[i])
	}
	return out
}

func dedupe(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// snippet derives a short preview from the first text part, preferring plain
// text and stripping tags from HTML.
func snippet(parts []rfc2822.Part) string {
	var text string
	for _, p := range parts {
		if p.MimeType == "text/plain" && len(p.Content) > 0 {
			text = string(p.Content)
			break
		}
	}
	if text == "" {
		for _, p := range parts {
			if p.MimeType == "text/html" {
				text = stripHTML(string(p.Content))
				break
			}
		}
	}
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}

func stripHTML(html string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(html, ""))
}
