package session

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiresim/wiresim/internal/rfc2822"
	"github.com/wiresim/wiresim/internal/workspace"
)

func TestCreate(t *testing.T) {
	s := NewStore()

	sess, err := s.Create("test-session")
	require.NoError(t, err)
	assert.Equal(t, "test-session", sess.ID)
	assert.NotNil(t, sess.Mailbox)
	assert.NotNil(t, sess.Workspace)
	assert.False(t, sess.CreatedAt.IsZero())
	assert.Equal(t, 1, s.Len())
}

func TestCreateGeneratedID(t *testing.T) {
	s := NewStore()

	first, err := s.Create("")
	require.NoError(t, err)
	second, err := s.Create("")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.ID, "session-"))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateConflict(t *testing.T) {
	s := NewStore()
	_, err := s.Create("dup")
	require.NoError(t, err)

	_, err = s.Create("dup")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDelete(t *testing.T) {
	s := NewStore()
	_, err := s.Create("gone")
	require.NoError(t, err)

	require.NoError(t, s.Delete("gone"))
	assert.False(t, s.Exists("gone"))

	err = s.With("gone", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete("gone"), ErrNotFound)
}

func TestDeleteAllowsIDReuse(t *testing.T) {
	s := NewStore()
	_, err := s.Create("reused")
	require.NoError(t, err)
	require.NoError(t, s.Delete("reused"))

	_, err = s.Create("reused")
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	s := NewStore()
	_, err := s.Create("fresh")
	require.NoError(t, err)

	err = s.With("fresh", func(sess *Session) error {
		sess.Mailbox.Send(&rfc2822.Message{
			Parts: []rfc2822.Part{{MimeType: "text/plain", Content: []byte("hi")}},
		}, 2)
		sess.Workspace.Post(workspace.Message{ChannelID: "C1", Text: "hi"})
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Reset("fresh"))

	err = s.With("fresh", func(sess *Session) error {
		assert.Zero(t, sess.Mailbox.Len())
		assert.Empty(t, sess.Workspace.History("C1", 0, ""))
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Reset("missing"), ErrNotFound)
}

func TestSessionIsolation(t *testing.T) {
	s := NewStore()
	_, err := s.Create("a")
	require.NoError(t, err)
	_, err = s.Create("b")
	require.NoError(t, err)

	err = s.With("a", func(sess *Session) error {
		sess.Mailbox.Send(&rfc2822.Message{
			Parts: []rfc2822.Part{{MimeType: "text/plain", Content: []byte("only in a")}},
		}, 9)
		return nil
	})
	require.NoError(t, err)

	err = s.With("b", func(sess *Session) error {
		assert.Zero(t, sess.Mailbox.Len(), "sessions share no state")
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	_, err := s.Create("shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.With("shared", func(sess *Session) error {
					sess.Workspace.Post(workspace.Message{ChannelID: "C1", Text: "msg"})
					return nil
				})
			}
		}()
	}
	wg.Wait()

	err = s.With("shared", func(sess *Session) error {
		msgs := sess.Workspace.History("C1", 0, "")
		assert.Len(t, msgs, 200)

		seen := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			assert.False(t, seen[m.TS], "duplicate ts %s", m.TS)
			seen[m.TS] = true
		}
		return nil
	})
	require.NoError(t, err)
}
