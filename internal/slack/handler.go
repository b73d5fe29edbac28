// Package slack implements the Slack-compatible simulator surface. The wire
// dialect follows the Slack Web API closely enough that slack-go clients work
// against it unmodified: logical failures are ok:false envelopes in a 200
// response, unknown sessions are a 404, and all state lives in the
// per-session workspace.
package slack

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wiresim/wiresim/internal/config"
	"github.com/wiresim/wiresim/internal/instrumentation"
	"github.com/wiresim/wiresim/internal/logging"
	"github.com/wiresim/wiresim/internal/session"
	"github.com/wiresim/wiresim/internal/workspace"
)

const defaultHistoryLimit = 100

// Wire types for the Slack surface.

type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

type authTestResponse struct {
	OK     bool   `json:"ok"`
	URL    string `json:"url"`
	Team   string `json:"team"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

type channelObject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created int64  `json:"created"`
}

type conversationsListResponse struct {
	OK       bool            `json:"ok"`
	Channels []channelObject `json:"channels"`
}

type messageObject struct {
	Type     string          `json:"type"`
	User     string          `json:"user"`
	Text     string          `json:"text"`
	TS       string          `json:"ts"`
	Username string          `json:"username,omitempty"`
	Blocks   json.RawMessage `json:"blocks,omitempty"`
}

type conversationsHistoryResponse struct {
	OK       bool            `json:"ok"`
	Messages []messageObject `json:"messages"`
}

type userProfile struct {
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type userObject struct {
	ID       string      `json:"id"`
	TeamID   string      `json:"team_id"`
	Name     string      `json:"name"`
	Deleted  bool        `json:"deleted"`
	RealName string      `json:"real_name"`
	Profile  userProfile `json:"profile"`
	IsBot    bool        `json:"is_bot"`
	Updated  int64       `json:"updated"`
}

type usersListResponse struct {
	OK      bool         `json:"ok"`
	Members []userObject `json:"members"`
}

type userInfoResponse struct {
	OK   bool       `json:"ok"`
	User userObject `json:"user"`
}

type getUploadURLResponse struct {
	OK        bool   `json:"ok"`
	UploadURL string `json:"upload_url"`
	FileID    string `json:"file_id"`
}

type completedFile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type completeUploadResponse struct {
	OK    bool            `json:"ok"`
	Files []completedFile `json:"files"`
}

// postMessageRequest covers both the form-encoded and JSON dialects of
// chat.postMessage.
type postMessageRequest struct {
	Channel   string          `json:"channel"`
	Text      string          `json:"text"`
	Username  string          `json:"username"`
	IconEmoji string          `json:"icon_emoji"`
	Blocks    json.RawMessage `json:"blocks"`
}

// Handler implements the Slack simulator HTTP surface.
type Handler struct {
	store    *session.Store
	identity config.WorkspaceConfig
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewHandler creates a Slack simulator handler backed by the session store.
// The identity config supplies the static values reported by auth.test.
func NewHandler(store *session.Store, identity config.WorkspaceConfig, logger *slog.Logger, metrics *instrumentation.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		identity: identity,
		logger:   logging.WithSimulator(logger, instrumentation.SimulatorSlack),
		metrics:  metrics,
	}
}

// begin opens the span for one simulator operation. The returned request
// carries the span context so ok and fail can close out the span status.
func (h *Handler) begin(r *http.Request, op string) (*http.Request, trace.Span) {
	ctx, span := instrumentation.StartSimulatorSpan(r.Context(), instrumentation.SimulatorSlack, op,
		attribute.String(instrumentation.SpanAttrSession, session.FromContext(r.Context())))
	return r.WithContext(ctx), span
}

// ServeHTTP routes Slack Web API requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth.test":
		h.handleAuthTest(w, r)
	case "/api/chat.postMessage":
		h.handlePostMessage(w, r)
	case "/api/conversations.list":
		h.handleConversationsList(w, r)
	case "/api/conversations.history":
		h.handleConversationsHistory(w, r)
	case "/api/users.list":
		h.handleUsersList(w, r)
	case "/api/users.info":
		h.handleUserInfo(w, r)
	case "/api/files.getUploadURLExternal":
		h.handleGetUploadURL(w, r)
	case "/api/files.completeUploadExternal":
		h.handleCompleteUpload(w, r)
	default:
		if strings.HasPrefix(r.URL.Path, "/upload/") {
			h.handleFileUpload(w, r)
			return
		}
		http.NotFound(w, r)
	}
}

func (h *Handler) handleAuthTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, authTestResponse{
		OK:     true,
		URL:    h.identity.URL,
		Team:   h.identity.TeamName,
		User:   "test-user",
		TeamID: h.identity.TeamID,
		UserID: h.identity.BotUserID,
	})
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationPost)
	defer span.End()

	req, err := decodePostMessage(r)
	if err != nil {
		h.fail(r, instrumentation.OperationPost, start, "failed to decode request", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_form_data"})
		return
	}

	if req.Channel == "" {
		h.fail(r, instrumentation.OperationPost, start, "missing channel", nil)
		writeJSON(w, apiResponse{OK: false, Error: "channel_not_found"})
		return
	}

	var ts string
	err = h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		ts = sess.Workspace.Post(workspace.Message{
			ChannelID: req.Channel,
			Text:      req.Text,
			UserID:    h.identity.BotUserID,
			Username:  req.Username,
			IconEmoji: req.IconEmoji,
			Blocks:    req.Blocks,
		})
		return nil
	})
	if err != nil {
		h.invalidSession(w)
		return
	}

	h.ok(r, instrumentation.OperationPost, start, slog.String("channel", req.Channel), slog.String("ts", ts))
	writeJSON(w, apiResponse{OK: true, Channel: req.Channel, TS: ts})
}

func (h *Handler) handleConversationsList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationList)
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.fail(r, instrumentation.OperationList, start, "failed to parse form", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_form_data"})
		return
	}

	limit := 0
	if s := r.FormValue("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	var channels []workspace.Channel
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		channels = sess.Workspace.Channels()
		return nil
	})
	if err != nil {
		h.invalidSession(w)
		return
	}

	if limit > 0 && limit < len(channels) {
		channels = channels[:limit]
	}

	out := make([]channelObject, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelObject{ID: ch.ID, Name: ch.Name, Created: ch.Created})
	}

	h.ok(r, instrumentation.OperationList, start, slog.Int("count", len(out)))
	writeJSON(w, conversationsListResponse{OK: true, Channels: out})
}

func (h *Handler) handleConversationsHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationList)
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.fail(r, instrumentation.OperationList, start, "failed to parse form", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_form_data"})
		return
	}

	channelID := r.FormValue("channel")
	if channelID == "" {
		writeJSON(w, apiResponse{OK: false, Error: "channel_not_found"})
		return
	}

	limit := defaultHistoryLimit
	if s := r.FormValue("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	oldest := r.FormValue("oldest")

	var messages []workspace.Message
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		messages = sess.Workspace.History(channelID, limit, oldest)
		return nil
	})
	if err != nil {
		h.invalidSession(w)
		return
	}

	out := make([]messageObject, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageObject{
			Type:     "message",
			User:     msg.UserID,
			Text:     msg.Text,
			TS:       msg.TS,
			Username: msg.Username,
			Blocks:   msg.Blocks,
		})
	}

	h.ok(r, instrumentation.OperationList, start,
		slog.String("channel", channelID),
		slog.Int("count", len(out)),
	)
	writeJSON(w, conversationsHistoryResponse{OK: true, Messages: out})
}

func (h *Handler) handleUsersList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationList)
	defer span.End()

	var users []workspace.User
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		users = sess.Workspace.Users()
		return nil
	})
	if err != nil {
		h.invalidSession(w)
		return
	}

	members := make([]userObject, 0, len(users))
	for _, u := range users {
		members = append(members, h.renderUser(u))
	}

	h.ok(r, instrumentation.OperationList, start, slog.Int("count", len(members)))
	writeJSON(w, usersListResponse{OK: true, Members: members})
}

func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationGet)
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.fail(r, instrumentation.OperationGet, start, "failed to parse form", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_form_data"})
		return
	}

	userID := r.FormValue("user")

	var user workspace.User
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		var lookupErr error
		user, lookupErr = sess.Workspace.User(userID)
		return lookupErr
	})
	if errors.Is(err, session.ErrNotFound) {
		h.invalidSession(w)
		return
	}
	if err != nil {
		h.fail(r, instrumentation.OperationGet, start, "user lookup failed", err)
		writeJSON(w, apiResponse{OK: false, Error: "user_not_found"})
		return
	}

	h.ok(r, instrumentation.OperationGet, start, slog.String("user", userID))
	writeJSON(w, userInfoResponse{OK: true, User: h.renderUser(user)})
}

func (h *Handler) handleGetUploadURL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationUpload)
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.fail(r, instrumentation.OperationUpload, start, "failed to parse form", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_form_data"})
		return
	}

	filename := r.FormValue("filename")
	length, _ := strconv.ParseInt(r.FormValue("length"), 10, 64)

	var file workspace.File
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		file = sess.Workspace.CreateFile(filename, length, h.identity.BotUserID)
		return nil
	})
	if err != nil {
		h.invalidSession(w)
		return
	}

	h.ok(r, instrumentation.OperationUpload, start,
		slog.String("file_id", file.ID),
		slog.String("filename", filename),
	)
	writeJSON(w, getUploadURLResponse{
		OK:        true,
		UploadURL: strings.TrimSuffix(h.identity.URL, "/") + "/upload/" + file.ID,
		FileID:    file.ID,
	})
}

func (h *Handler) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationUpload)
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.fail(r, instrumentation.OperationUpload, start, "failed to parse form", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_form_data"})
		return
	}

	var files []completedFile
	if err := json.Unmarshal([]byte(r.FormValue("files")), &files); err != nil {
		h.fail(r, instrumentation.OperationUpload, start, "failed to parse files", err)
		writeJSON(w, apiResponse{OK: false, Error: "invalid_json"})
		return
	}

	completed := make([]completedFile, 0, len(files))
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		for _, f := range files {
			done, completeErr := sess.Workspace.CompleteFile(f.ID, f.Title)
			if completeErr != nil {
				return completeErr
			}
			completed = append(completed, completedFile{ID: done.ID, Title: done.Title})
		}
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		h.invalidSession(w)
		return
	}
	if err != nil {
		h.fail(r, instrumentation.OperationUpload, start, "file lookup failed", err)
		writeJSON(w, apiResponse{OK: false, Error: "file_not_found"})
		return
	}

	h.ok(r, instrumentation.OperationUpload, start, slog.Int("count", len(completed)))
	writeJSON(w, completeUploadResponse{OK: true, Files: completed})
}

// handleFileUpload accepts the bytes posted to an upload URL. Content is
// discarded; only the metadata recorded at URL allocation time survives.
func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationUpload)
	defer span.End()

	h.ok(r, instrumentation.OperationUpload, start,
		slog.String("file_id", strings.TrimPrefix(r.URL.Path, "/upload/")),
	)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) renderUser(u workspace.User) userObject {
	return userObject{
		ID:       u.ID,
		TeamID:   h.identity.TeamID,
		Name:     u.Name,
		RealName: u.RealName,
		Profile: userProfile{
			RealName:    u.RealName,
			DisplayName: u.DisplayName,
			Email:       u.Email,
		},
	}
}

// decodePostMessage accepts both dialects clients use for chat.postMessage:
// slack-go posts form-encoded bodies, raw clients tend to post JSON.
func decodePostMessage(r *http.Request) (postMessageRequest, error) {
	var req postMessageRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Channel = r.FormValue("channel")
	req.Text = r.FormValue("text")
	req.Username = r.FormValue("username")
	req.IconEmoji = r.FormValue("icon_emoji")
	if blocks := r.FormValue("blocks"); blocks != "" {
		req.Blocks = json.RawMessage(blocks)
	}
	return req, nil
}

// invalidSession reports an unknown session. Unlike logical API failures it
// is an infrastructure error, so the envelope rides a 404 rather than a 200.
func (h *Handler) invalidSession(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(apiResponse{OK: false, Error: "invalid_session"})
}

func (h *Handler) ok(r *http.Request, op string, start time.Time, attrs ...slog.Attr) {
	instrumentation.SetSpanSuccess(trace.SpanFromContext(r.Context()))
	h.metrics.RecordSimulatorOperation(r.Context(), instrumentation.SimulatorSlack, op, instrumentation.StatusSuccess, time.Since(start))
	all := append([]slog.Attr{
		logging.Operation(op),
		logging.Session(session.FromContext(r.Context())),
		logging.Status(instrumentation.StatusSuccess),
	}, attrs...)
	h.logger.LogAttrs(r.Context(), slog.LevelInfo, "operation completed", all...)
}

func (h *Handler) fail(r *http.Request, op string, start time.Time, msg string, err error) {
	instrumentation.SetSpanError(trace.SpanFromContext(r.Context()), err)
	h.metrics.RecordSimulatorOperation(r.Context(), instrumentation.SimulatorSlack, op, instrumentation.StatusError, time.Since(start))
	h.logger.Warn(msg,
		logging.Operation(op),
		logging.Session(session.FromContext(r.Context())),
		logging.Status(instrumentation.StatusError),
		logging.Err(err),
	)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
