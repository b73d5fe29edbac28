package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchFixture(t *testing.T) *Mailbox {
	t.Helper()
	b := New()
	b.Import(parsedMessage("alice@example.com", "bob@example.com", "Project update", "The deadline moved."), 10, nil)
	b.Import(parsedMessage("carol@example.com", "bob@example.com", "Lunch plans", "Pizza on Friday?"), 10, []string{"INBOX"})
	b.Send(parsedMessage("me@example.com", "alice@example.com", "Re: Project update", "Sounds good."), 10)
	return b
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		subjects []string
	}{
		{
			name:     "empty query matches everything",
			query:    "",
			subjects: []string{"Re: Project update", "Lunch plans", "Project update"},
		},
		{
			name:     "from",
			query:    "from:alice",
			subjects: []string{"Project update"},
		},
		{
			name:     "to",
			query:    "to:alice@example.com",
			subjects: []string{"Re: Project update"},
		},
		{
			name:     "subject is case-insensitive substring",
			query:    "subject:project",
			subjects: []string{"Re: Project update", "Project update"},
		},
		{
			name:     "label",
			query:    "label:SENT",
			subjects: []string{"Re: Project update"},
		},
		{
			name:     "is:unread",
			query:    "is:unread",
			subjects: []string{"Project update"},
		},
		{
			name:     "is:read",
			query:    "is:read",
			subjects: []string{"Re: Project update", "Lunch plans"},
		},
		{
			name:     "bare term searches body",
			query:    "pizza",
			subjects: []string{"Lunch plans"},
		},
		{
			name:     "terms combine with AND",
			query:    "from:alice to:bob deadline",
			subjects: []string{"Project update"},
		},
		{
			name:     "no matches",
			query:    "from:nobody",
			subjects: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := searchFixture(t)
			got := b.Search(tt.query)
			require.Len(t, got, len(tt.subjects))
			for i, want := range tt.subjects {
				assert.Equal(t, want, got[i].Header("Subject"))
			}
		})
	}
}

func TestParseQuery(t *testing.T) {
	parsed := parseQuery("from:a to:b subject:c label:STARRED hello world")
	assert.Equal(t, "a", parsed.from)
	assert.Equal(t, "b", parsed.to)
	assert.Equal(t, "c", parsed.subject)
	assert.Equal(t, "STARRED", parsed.label)
	assert.Equal(t, []string{"hello", "world"}, parsed.body)
}
