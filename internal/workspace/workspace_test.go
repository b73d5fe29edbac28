package workspace

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tsFormat = regexp.MustCompile(`^\d+\.\d{6}$`)

func TestPostTimestampFormat(t *testing.T) {
	w := New()
	ts := w.Post(Message{ChannelID: "C123", Text: "hello"})
	assert.Regexp(t, tsFormat, ts)
}

func TestPostTimestampsStrictlyIncreasing(t *testing.T) {
	w := New()
	var prev float64
	for i := 0; i < 100; i++ {
		ts := w.Post(Message{ChannelID: "C123", Text: "msg"})
		f, err := strconv.ParseFloat(ts, 64)
		require.NoError(t, err)
		assert.Greater(t, f, prev, "ts must strictly increase")
		prev = f
	}
}

func TestPostUnknownChannelAllowed(t *testing.T) {
	w := New()
	// Posting never validates the channel id.
	ts := w.Post(Message{ChannelID: "C-never-seeded", Text: "hello"})
	assert.NotEmpty(t, ts)

	msgs := w.History("C-never-seeded", 0, "")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
}

func TestHistoryNewestFirst(t *testing.T) {
	w := New()
	w.Post(Message{ChannelID: "C1", Text: "first"})
	w.Post(Message{ChannelID: "C1", Text: "second"})
	w.Post(Message{ChannelID: "C1", Text: "third"})
	w.Post(Message{ChannelID: "C2", Text: "other channel"})

	msgs := w.History("C1", 0, "")
	require.Len(t, msgs, 3)
	assert.Equal(t, "third", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
	assert.Equal(t, "first", msgs[2].Text)
}

func TestHistoryLimit(t *testing.T) {
	w := New()
	for i := 0; i < 5; i++ {
		w.Post(Message{ChannelID: "C1", Text: "msg"})
	}

	assert.Len(t, w.History("C1", 2, ""), 2)
	assert.Len(t, w.History("C1", 0, ""), 5, "zero limit is unbounded")
	assert.Len(t, w.History("C1", 10, ""), 5)
}

func TestHistoryOldestExclusive(t *testing.T) {
	w := New()
	w.Post(Message{ChannelID: "C1", Text: "first"})
	cutoff := w.Post(Message{ChannelID: "C1", Text: "second"})
	w.Post(Message{ChannelID: "C1", Text: "third"})

	msgs := w.History("C1", 0, cutoff)
	require.Len(t, msgs, 1, "oldest is an exclusive bound")
	assert.Equal(t, "third", msgs[0].Text)

	assert.Len(t, w.History("C1", 0, "0"), 3, `oldest "0" is unbounded`)
}

func TestHistoryEmptyChannel(t *testing.T) {
	w := New()
	assert.Empty(t, w.History("C-empty", 0, ""))
}

func TestAddChannel(t *testing.T) {
	w := New()
	w.AddChannel(Channel{ID: "C1", Name: "general"})
	w.AddChannel(Channel{ID: "C2", Name: "random"})

	chans := w.Channels()
	require.Len(t, chans, 2)
	assert.Equal(t, "general", chans[0].Name)
	assert.NotZero(t, chans[0].Created, "created defaults to now")

	// Same id replaces in place without reordering.
	w.AddChannel(Channel{ID: "C1", Name: "renamed", Created: 42})
	chans = w.Channels()
	require.Len(t, chans, 2)
	assert.Equal(t, "renamed", chans[0].Name)
	assert.Equal(t, int64(42), chans[0].Created)
}

func TestUsers(t *testing.T) {
	w := New()
	w.AddUser(User{ID: "U1", Name: "alice", RealName: "Alice Smith"})
	w.AddUser(User{ID: "U2", Name: "bob"})

	users := w.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)
	assert.Equal(t, "bob", users[1].Name)

	u, err := w.User("U1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", u.RealName)

	_, err = w.User("U-missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Re-adding replaces the entry but keeps its position.
	w.AddUser(User{ID: "U1", Name: "alice2"})
	users = w.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "alice2", users[0].Name)
}

func TestCreateFile(t *testing.T) {
	w := New()

	f := w.CreateFile("report.pdf", 2048, "U123456")
	assert.Regexp(t, `^F[0-9a-f]{16}$`, f.ID)
	assert.Equal(t, "report.pdf", f.Filename)
	assert.Equal(t, "report.pdf", f.Title, "title defaults to the filename")
	assert.Equal(t, int64(2048), f.Size)
	assert.Equal(t, "U123456", f.UserID)
	assert.NotZero(t, f.Created)
	assert.False(t, f.Complete)

	second := w.CreateFile("other.txt", 10, "U123456")
	assert.NotEqual(t, f.ID, second.ID)

	files := w.Files()
	require.Len(t, files, 2)
	assert.Equal(t, f.ID, files[0].ID, "creation order")
	assert.Equal(t, second.ID, files[1].ID)
}

func TestCompleteFile(t *testing.T) {
	w := New()
	f := w.CreateFile("report.pdf", 2048, "U123456")

	done, err := w.CompleteFile(f.ID, "Q3 report")
	require.NoError(t, err)
	assert.Equal(t, "Q3 report", done.Title)
	assert.True(t, done.Complete)

	// Empty title keeps the existing one.
	done, err = w.CompleteFile(f.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Q3 report", done.Title)

	_, err = w.CompleteFile("F-missing", "nope")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
