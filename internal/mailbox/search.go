package mailbox

import "strings"

// query is the parsed form of the Gmail-style search DSL. All populated
// terms must match (implicit AND).
type query struct {
	from    string
	to      string
	subject string
	label   string // "!LABEL" means the label must be absent
	body    []string
}

// parseQuery understands from:, to:, subject:, label:, is:unread, is:read.
// Anything without a recognized prefix is matched against body text.
func parseQuery(q string) query {
	var parsed query
	for _, term := range strings.Fields(q) {
		switch {
		case strings.HasPrefix(term, "from:"):
			parsed.from = strings.TrimPrefix(term, "from:")
		case strings.HasPrefix(term, "to:"):
			parsed.to = strings.TrimPrefix(term, "to:")
		case strings.HasPrefix(term, "subject:"):
			parsed.subject = strings.TrimPrefix(term, "subject:")
		case strings.HasPrefix(term, "label:"):
			parsed.label = strings.TrimPrefix(term, "label:")
		case term == "is:unread":
			parsed.label = LabelUnread
		case term == "is:read":
			parsed.label = "!" + LabelUnread
		default:
			parsed.body = append(parsed.body, term)
		}
	}
	return parsed
}

// Search returns messages matching the query string, most recent first.
// An empty query matches everything.
func (b *Mailbox) Search(q string) []*Message {
	parsed := parseQuery(q)
	out := make([]*Message, 0, len(b.messages))
	for i := len(b.messages) - 1; i >= 0; i-- {
		if parsed.matches(b.messages[i]) {
			out = append(out, b.messages[i])
		}
	}
	return out
}

func (q query) matches(m *Message) bool {
	if q.from != "" && !containsFold(m.Header("From"), q.from) {
		return false
	}
	if q.to != "" && !containsFold(m.Header("To"), q.to) {
		return false
	}
	if q.subject != "" && !containsFold(m.Header("Subject"), q.subject) {
		return false
	}
	if q.label != "" {
		if negated := strings.HasPrefix(q.label, "!"); negated {
			if m.HasLabel(strings.TrimPrefix(q.label, "!")) {
				return false
			}
		} else if !m.HasLabel(q.label) {
			return false
		}
	}
	for _, term := range q.body {
		if !bodyContains(m, term) {
			return false
		}
	}
	return true
}

func bodyContains(m *Message, term string) bool {
	for _, p := range m.Parts {
		if containsFold(string(p.Content), term) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
