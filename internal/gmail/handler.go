// Package gmail implements the Gmail-compatible simulator surface. It speaks
// the Gmail REST dialect closely enough that generated Gmail API clients work
// against it unmodified, while all state lives in the per-session mailbox.
package gmail

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/wiresim/wiresim/internal/instrumentation"
	"github.com/wiresim/wiresim/internal/logging"
	"github.com/wiresim/wiresim/internal/mailbox"
	"github.com/wiresim/wiresim/internal/rfc2822"
	"github.com/wiresim/wiresim/internal/session"
)

const defaultMaxResults = 100

// Handler implements the Gmail simulator HTTP surface.
type Handler struct {
	store   *session.Store
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewHandler creates a Gmail simulator handler backed by the session store.
func NewHandler(store *session.Store, logger *slog.Logger, metrics *instrumentation.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		logger:  logging.WithSimulator(logger, instrumentation.SimulatorGmail),
		metrics: metrics,
	}
}

// begin opens the span for one simulator operation. The returned request
// carries the span context so ok and fail can close out the span status.
func (h *Handler) begin(r *http.Request, op string) (*http.Request, trace.Span) {
	ctx, span := instrumentation.StartSimulatorSpan(r.Context(), instrumentation.SimulatorGmail, op,
		attribute.String(instrumentation.SpanAttrSession, session.FromContext(r.Context())))
	return r.WithContext(ctx), span
}

// ServeHTTP routes Gmail API requests.
//
// Both /v1/users/ (behind StripPrefix in the assembled server) and
// /gmail/v1/users/ (when mounted directly) are accepted.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/v1/users/") || strings.HasPrefix(r.URL.Path, "/gmail/v1/users/") {
		h.route(w, r)
		return
	}

	http.NotFound(w, r)
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")
	if path == r.URL.Path {
		path = strings.TrimPrefix(path, "/v1/users/me/")
	}

	switch {
	case strings.HasPrefix(path, "messages/send"):
		h.handleSend(w, r)
	case strings.HasPrefix(path, "messages/import"):
		h.handleImport(w, r)
	case strings.HasPrefix(path, "messages/") && strings.Contains(path, "/attachments/") && r.Method == http.MethodGet:
		// messages/{msgId}/attachments/{attachmentId}
		parts := strings.Split(path, "/")
		if len(parts) >= 4 && parts[2] == "attachments" {
			h.handleGetAttachment(w, r, parts[1], parts[3])
		} else {
			http.Error(w, "Invalid attachment path", http.StatusBadRequest)
		}
	case strings.HasPrefix(path, "messages/") && strings.HasSuffix(path, "/modify") && r.Method == http.MethodPost:
		// messages/{msgId}/modify
		id := strings.TrimSuffix(strings.TrimPrefix(path, "messages/"), "/modify")
		h.handleModify(w, r, id)
	case strings.HasPrefix(path, "messages/") && r.Method == http.MethodGet:
		parts := strings.Split(path, "/")
		if len(parts) >= 2 && parts[1] != "" {
			h.handleGetMessage(w, r, parts[1])
		} else {
			http.Error(w, "Invalid message ID", http.StatusBadRequest)
		}
	case path == "messages" && r.Method == http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

// decodeRaw decodes the submitted message body into its raw RFC 2822 text.
// A nil message or empty raw field is rejected the same way as bad base64.
func decodeRaw(req *gmailv1.Message) (*rfc2822.Message, int, error) {
	if req == nil || req.Raw == "" {
		return nil, 0, errors.New("missing raw message")
	}
	parsed, err := rfc2822.Decode(req.Raw)
	if err != nil {
		return nil, 0, err
	}
	rawBytes, _ := base64.URLEncoding.DecodeString(req.Raw)
	if len(rawBytes) == 0 {
		// Raw used unpadded encoding; recover the size from the parse.
		rawBytes, _ = base64.RawURLEncoding.DecodeString(req.Raw)
	}
	return parsed, len(rawBytes), nil
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationSend)
	defer span.End()

	var req gmailv1.Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(r, instrumentation.OperationSend, start, "failed to decode request", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	parsed, rawSize, err := decodeRaw(&req)
	if err != nil {
		h.fail(r, instrumentation.OperationSend, start, "failed to decode raw message", err)
		http.Error(w, "Invalid base64 encoding", http.StatusBadRequest)
		return
	}

	var stored *mailbox.Message
	err = h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		stored = sess.Mailbox.Send(parsed, rawSize)
		return nil
	})
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	h.ok(r, instrumentation.OperationSend, start, slog.String("message_id", stored.ID))
	writeJSON(w, &gmailv1.Message{
		Id:       stored.ID,
		ThreadId: stored.ThreadID,
		LabelIds: stored.LabelIDs,
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationImport)
	defer span.End()

	var req gmailv1.Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(r, instrumentation.OperationImport, start, "failed to decode request", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	parsed, rawSize, err := decodeRaw(&req)
	if err != nil {
		h.fail(r, instrumentation.OperationImport, start, "failed to decode raw message", err)
		http.Error(w, "Invalid base64 encoding", http.StatusBadRequest)
		return
	}

	var stored *mailbox.Message
	err = h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		stored = sess.Mailbox.Import(parsed, rawSize, req.LabelIds)
		return nil
	})
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	h.ok(r, instrumentation.OperationImport, start, slog.String("message_id", stored.ID))
	writeJSON(w, &gmailv1.Message{
		Id:       stored.ID,
		ThreadId: stored.ThreadID,
		LabelIds: stored.LabelIDs,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	query := r.URL.Query()
	maxResults := defaultMaxResults
	if s := query.Get("maxResults"); s != "" {
		if mr, err := strconv.Atoi(s); err == nil && mr > 0 {
			maxResults = mr
		}
	}

	offset := 0
	if token := query.Get("pageToken"); token != "" {
		if decoded, err := decodePageToken(token); err == nil {
			offset = decoded
		}
	}

	searchQuery := query.Get("q")
	op := instrumentation.OperationList
	if searchQuery != "" {
		op = instrumentation.OperationSearch
	}
	r, span := h.begin(r, op)
	defer span.End()

	var matched []*mailbox.Message
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		if searchQuery != "" {
			matched = sess.Mailbox.Search(searchQuery)
		} else {
			matched = sess.Mailbox.List()
		}
		return nil
	})
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	// The estimate is the post-filter count, independent of pagination.
	total := len(matched)

	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]

	// One past the page size signals another page.
	var nextPageToken string
	if len(matched) > maxResults {
		matched = matched[:maxResults]
		nextPageToken = encodePageToken(offset + maxResults)
	}

	items := make([]*gmailv1.Message, 0, len(matched))
	for _, m := range matched {
		items = append(items, &gmailv1.Message{Id: m.ID, ThreadId: m.ThreadID})
	}

	h.ok(r, op, start, slog.Int("count", len(items)))
	writeJSON(w, &gmailv1.ListMessagesResponse{
		Messages:           items,
		NextPageToken:      nextPageToken,
		ResultSizeEstimate: int64(total),
		// resultSizeEstimate must appear even when zero.
		ForceSendFields: []string{"ResultSizeEstimate"},
	})
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request, messageID string) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationGet)
	defer span.End()

	var msg *mailbox.Message
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		var lookupErr error
		msg, lookupErr = sess.Mailbox.Get(messageID)
		return lookupErr
	})
	if err != nil {
		h.fail(r, instrumentation.OperationGet, start, "message lookup failed", err)
		http.NotFound(w, r)
		return
	}

	h.ok(r, instrumentation.OperationGet, start, slog.String("message_id", msg.ID))
	writeJSON(w, renderMessage(msg))
}

func (h *Handler) handleModify(w http.ResponseWriter, r *http.Request, messageID string) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationModify)
	defer span.End()

	var req gmailv1.ModifyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(r, instrumentation.OperationModify, start, "failed to decode request", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var msg *mailbox.Message
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		var modifyErr error
		msg, modifyErr = sess.Mailbox.Modify(messageID, req.AddLabelIds, req.RemoveLabelIds)
		return modifyErr
	})
	if err != nil {
		h.fail(r, instrumentation.OperationModify, start, "modify failed", err)
		http.NotFound(w, r)
		return
	}

	h.ok(r, instrumentation.OperationModify, start, slog.String("message_id", msg.ID))
	writeJSON(w, &gmailv1.Message{
		Id:       msg.ID,
		ThreadId: msg.ThreadID,
		LabelIds: msg.LabelIDs,
	})
}

func (h *Handler) handleGetAttachment(w http.ResponseWriter, r *http.Request, messageID, attachmentID string) {
	start := time.Now()
	r, span := h.begin(r, instrumentation.OperationGet)
	defer span.End()

	var att *mailbox.Attachment
	err := h.store.With(session.FromContext(r.Context()), func(sess *session.Session) error {
		var lookupErr error
		att, lookupErr = sess.Mailbox.Attachment(messageID, attachmentID)
		return lookupErr
	})
	if err != nil {
		h.fail(r, instrumentation.OperationGet, start, "attachment lookup failed", err)
		http.NotFound(w, r)
		return
	}

	h.ok(r, instrumentation.OperationGet, start, slog.String("attachment_id", attachmentID))
	writeJSON(w, &gmailv1.MessagePartBody{
		Data:            base64.URLEncoding.EncodeToString(att.Data),
		Size:            int64(len(att.Data)),
		ForceSendFields: []string{"Size"},
	})
}

// renderMessage builds the full Gmail wire representation of a stored message.
func renderMessage(msg *mailbox.Message) *gmailv1.Message {
	headers := make([]*gmailv1.MessagePartHeader, 0, len(msg.Headers)+1)
	hasDate := false
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Name, "Date") {
			hasDate = true
		}
		headers = append(headers, &gmailv1.MessagePartHeader{Name: h.Name, Value: h.Value})
	}
	if !hasDate {
		headers = append(headers, &gmailv1.MessagePartHeader{
			Name:  "Date",
			Value: time.UnixMilli(msg.InternalDate).Format(time.RFC1123Z),
		})
	}

	var parts []*gmailv1.MessagePart
	for i, p := range msg.Parts {
		parts = append(parts, &gmailv1.MessagePart{
			PartId:   strconv.Itoa(i),
			MimeType: p.MimeType,
			Headers: []*gmailv1.MessagePartHeader{
				{Name: "Content-Type", Value: p.MimeType + `; charset="UTF-8"`},
			},
			Body: &gmailv1.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString(p.Content),
				Size: int64(len(p.Content)),
			},
		})
	}
	for i, att := range msg.Attachments {
		parts = append(parts, &gmailv1.MessagePart{
			PartId:   fmt.Sprintf("att_%d", i),
			MimeType: att.MimeType,
			Filename: att.Filename,
			Headers: []*gmailv1.MessagePartHeader{
				{Name: "Content-Type", Value: att.MimeType},
			},
			// Attachment bytes are fetched separately by attachment id.
			Body: &gmailv1.MessagePartBody{
				AttachmentId: att.ID,
				Size:         int64(len(att.Data)),
			},
		})
	}

	mimeType := "text/plain"
	if len(parts) > 1 {
		mimeType = "multipart/mixed"
	}

	return &gmailv1.Message{
		Id:           msg.ID,
		ThreadId:     msg.ThreadID,
		LabelIds:     msg.LabelIDs,
		Snippet:      msg.Snippet,
		InternalDate: msg.InternalDate,
		SizeEstimate: msg.SizeEstimate,
		Payload: &gmailv1.MessagePart{
			MimeType: mimeType,
			Headers:  headers,
			Body:     &gmailv1.MessagePartBody{},
			Parts:    parts,
		},
	}
}

func (h *Handler) ok(r *http.Request, op string, start time.Time, attrs ...slog.Attr) {
	instrumentation.SetSpanSuccess(trace.SpanFromContext(r.Context()))
	h.metrics.RecordSimulatorOperation(r.Context(), instrumentation.SimulatorGmail, op, instrumentation.StatusSuccess, time.Since(start))
	all := append([]slog.Attr{
		logging.Operation(op),
		logging.Session(session.FromContext(r.Context())),
		logging.Status(instrumentation.StatusSuccess),
	}, attrs...)
	h.logger.LogAttrs(r.Context(), slog.LevelInfo, "operation completed", all...)
}

func (h *Handler) fail(r *http.Request, op string, start time.Time, msg string, err error) {
	instrumentation.SetSpanError(trace.SpanFromContext(r.Context()), err)
	h.metrics.RecordSimulatorOperation(r.Context(), instrumentation.SimulatorGmail, op, instrumentation.StatusError, time.Since(start))
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

func encodePageToken(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return offset, nil
}
