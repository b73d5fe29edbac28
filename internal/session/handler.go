package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wiresim/wiresim/internal/instrumentation"
	"github.com/wiresim/wiresim/internal/logging"
	"github.com/wiresim/wiresim/internal/workspace"
)

// Handler serves the session lifecycle endpoints. Unlike the simulator
// surfaces, these endpoints do not require a session header: they are the
// way sessions come into existence.
type Handler struct {
	store   *Store
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// OnDelete, when set, is invoked after a session is deleted so other
	// components can drop per-session state (rate limiter quotas).
	OnDelete func(sessionID string)
}

// NewHandler creates a session lifecycle handler.
func NewHandler(store *Store, logger *slog.Logger, metrics *instrumentation.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger, metrics: metrics}
}

type createRequest struct {
	ID string `json:"id"`
}

type seedRequest struct {
	Slack seedSlack `json:"slack"`
}

type seedSlack struct {
	Channels []seedChannel `json:"channels"`
	Users    []seedUser    `json:"users"`
}

type seedChannel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created int64  `json:"created,omitempty"`
}

type seedUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// ServeHTTP routes /api/sessions requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.create(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	sessionID := parts[0]

	if len(parts) == 2 {
		switch {
		case parts[1] == "reset" && r.Method == http.MethodPost:
			h.reset(w, sessionID)
		case parts[1] == "seed" && r.Method == http.MethodPost:
			h.seed(w, r, sessionID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.delete(w, r, sessionID)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.Body != nil {
		// An empty or absent body means a server-generated id.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sess, err := h.store.Create(req.ID)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"session_id": req.ID,
				"status":     "conflict",
			})
			return
		}
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordSessionCreated(r.Context())
	h.logger.Info("session created", logging.Session(sess.ID))
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"status":     "created",
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.store.Delete(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"session_id": sessionID,
			"status":     "not_found",
		})
		return
	}

	if h.OnDelete != nil {
		h.OnDelete(sessionID)
	}
	h.metrics.RecordSessionDeleted(r.Context())
	h.logger.Info("session deleted", logging.Session(sessionID))
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "deleted",
	})
}

func (h *Handler) reset(w http.ResponseWriter, sessionID string) {
	if err := h.store.Reset(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"session_id": sessionID,
			"status":     "not_found",
		})
		return
	}

	h.logger.Info("session reset", logging.Session(sessionID))
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "reset",
	})
}

// seed installs initial workspace state for a session. Seeding is an admin
// concern: client flows look channels and users up but never create them.
func (h *Handler) seed(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid seed payload", http.StatusBadRequest)
		return
	}

	err := h.store.With(sessionID, func(sess *Session) error {
		for _, ch := range req.Slack.Channels {
			sess.Workspace.AddChannel(workspace.Channel{
				ID:      ch.ID,
				Name:    ch.Name,
				Created: ch.Created,
			})
		}
		for _, u := range req.Slack.Users {
			sess.Workspace.AddUser(workspace.User{
				ID:          u.ID,
				Name:        u.Name,
				RealName:    u.RealName,
				DisplayName: u.DisplayName,
				Email:       u.Email,
			})
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"session_id": sessionID,
			"status":     "not_found",
		})
		return
	}

	logging.WithSession(h.logger, sessionID).Info("session seeded",
		slog.Int("channels", len(req.Slack.Channels)),
		slog.Int("users", len(req.Slack.Users)),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "seeded",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
