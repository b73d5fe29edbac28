// Package workspace implements the per-session state behind the Slack
// simulator: channels, posted messages with monotonic timestamps, and the
// user directory.
//
// A Workspace has no locking of its own; it is owned by exactly one session
// and all access goes through that session's mutex.
package workspace

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrUserNotFound is returned when a user id is not in the directory.
var ErrUserNotFound = errors.New("user not found")

// ErrFileNotFound is returned when a file id has no upload slot.
var ErrFileNotFound = errors.New("file not found")

// Channel is a named conversation. Channels enter a workspace only through
// seeding; posting to an unknown channel id is allowed and does not create
// one.
type Channel struct {
	ID      string
	Name    string
	Created int64
}

// Message is a posted message. Immutable once created; TS doubles as its
// identifier and sort key.
type Message struct {
	ChannelID string
	TS        string
	Text      string
	UserID    string
	Username  string
	IconEmoji string
	Blocks    json.RawMessage
}

// File is an upload slot allocated by the files API. Only metadata is
// retained; uploaded content bytes are accepted and discarded.
type File struct {
	ID       string
	Filename string
	Title    string
	Size     int64
	UserID   string
	Created  int64
	Complete bool
}

// User is a directory entry, looked up but never created by client flows.
type User struct {
	ID          string
	Name        string
	RealName    string
	DisplayName string
	Email       string
}

// Workspace holds all Slack state for one session.
type Workspace struct {
	channels  []Channel // insertion order
	messages  map[string][]Message
	users     map[string]User
	userOrder []string
	files     map[string]File
	fileOrder []string
	lastSec   int64
	lastMicro int64
}

// New returns an empty workspace.
func New() *Workspace {
	return &Workspace{
		messages: make(map[string][]Message),
		users:    make(map[string]User),
		files:    make(map[string]File),
	}
}

// nextTS allocates a strictly increasing "seconds.microseconds" timestamp.
// Sorting by parsed-float ts recovers creation order, and every allocated
// value is unique across the workspace.
func (w *Workspace) nextTS() string {
	now := time.Now()
	sec, micro := now.Unix(), int64(now.Nanosecond()/1000)
	if sec < w.lastSec || (sec == w.lastSec && micro <= w.lastMicro) {
		sec, micro = w.lastSec, w.lastMicro+1
		if micro >= 1_000_000 {
			sec, micro = sec+1, 0
		}
	}
	w.lastSec, w.lastMicro = sec, micro
	return fmt.Sprintf("%d.%06d", sec, micro)
}

// Post records a message against the given channel id and returns its
// timestamp. The channel is not validated: recording against a channel the
// workspace has never seen is intended behavior.
func (w *Workspace) Post(msg Message) string {
	msg.TS = w.nextTS()
	w.messages[msg.ChannelID] = append(w.messages[msg.ChannelID], msg)
	return msg.TS
}

// History returns messages for a channel, newest first. oldest is an
// exclusive lower bound on ts ("" or "0" means unbounded); limit caps the
// returned count when positive.
func (w *Workspace) History(channelID string, limit int, oldest string) []Message {
	msgs := w.messages[channelID]

	var bound float64
	if oldest != "" && oldest != "0" {
		bound, _ = strconv.ParseFloat(oldest, 64)
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		ts, _ := strconv.ParseFloat(m.TS, 64)
		if bound > 0 && ts <= bound {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseFloat(out[i].TS, 64)
		b, _ := strconv.ParseFloat(out[j].TS, 64)
		return a > b
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Channels returns known channels in insertion order.
func (w *Workspace) Channels() []Channel {
	out := make([]Channel, len(w.channels))
	copy(out, w.channels)
	return out
}

// AddChannel registers a channel; an existing channel with the same id is
// replaced in place.
func (w *Workspace) AddChannel(ch Channel) {
	if ch.Created == 0 {
		ch.Created = time.Now().Unix()
	}
	for i := range w.channels {
		if w.channels[i].ID == ch.ID {
			w.channels[i] = ch
			return
		}
	}
	w.channels = append(w.channels, ch)
}

// Users returns directory entries in insertion order.
func (w *Workspace) Users() []User {
	out := make([]User, 0, len(w.userOrder))
	for _, id := range w.userOrder {
		out = append(out, w.users[id])
	}
	return out
}

// User looks up a directory entry by id.
func (w *Workspace) User(id string) (User, error) {
	u, ok := w.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// AddUser registers a directory entry; an existing user with the same id is
// replaced.
func (w *Workspace) AddUser(u User) {
	if _, ok := w.users[u.ID]; !ok {
		w.userOrder = append(w.userOrder, u.ID)
	}
	w.users[u.ID] = u
}

// CreateFile allocates an upload slot for the named file and returns it.
// The title defaults to the filename until the upload is completed.
func (w *Workspace) CreateFile(filename string, size int64, userID string) File {
	f := File{
		ID:       newFileID(),
		Filename: filename,
		Title:    filename,
		Size:     size,
		UserID:   userID,
		Created:  time.Now().Unix(),
	}
	w.files[f.ID] = f
	w.fileOrder = append(w.fileOrder, f.ID)
	return f
}

// CompleteFile marks an upload slot finished, retitling it when title is
// non-empty.
func (w *Workspace) CompleteFile(id, title string) (File, error) {
	f, ok := w.files[id]
	if !ok {
		return File{}, ErrFileNotFound
	}
	if title != "" {
		f.Title = title
	}
	f.Complete = true
	w.files[id] = f
	return f, nil
}

// Files returns upload slots in creation order.
func (w *Workspace) Files() []File {
	out := make([]File, 0, len(w.fileOrder))
	for _, id := range w.fileOrder {
		out = append(out, w.files[id])
	}
	return out
}

// newFileID allocates a Slack-shaped file id.
func newFileID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "F" + hex.EncodeToString(b)
}
