// Package app assembles the operator console HTTP surface: fleet and
// inventory dashboards, user flag toggles, and targeted notifications.
package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/promo-harvester/internal/bot"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/usecase"
)

// Server holds the console dependencies.
type Server struct {
	Cfg   config.Config
	Stats *usecase.StatsService
	Users *usecase.UserService
	Front *bot.Front
	Log   *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// InventoryHandler reports per-game display counts.
func (s *Server) InventoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := s.Stats.InventoryCounts(r.Context())
		if err != nil {
			s.Log.Error("inventory counts failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "inventory unavailable")
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

// SummaryHandler reports the fleet overview card.
func (s *Server) SummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := s.Stats.Summary(r.Context())
		if err != nil {
			s.Log.Error("summary failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "summary unavailable")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// UserHandler looks up one user record.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad user id")
			return
		}
		u, err := s.Users.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

type flagRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// FlagHandler sets one operator-controlled user field.
func (s *Server) FlagHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad user id")
			return
		}
		var req flagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad body")
			return
		}
		var serr error
		switch req.Field {
		case "is_banned":
			b, ok := req.Value.(bool)
			if !ok {
				writeError(w, http.StatusBadRequest, "is_banned wants a bool")
				return
			}
			serr = s.Users.SetBanned(r.Context(), id, b)
		case "user_status":
			v, _ := req.Value.(string)
			serr = s.Users.SetStatus(r.Context(), id, v)
		case "user_role":
			v, _ := req.Value.(string)
			serr = s.Users.SetRole(r.Context(), id, v)
		case "notes":
			v, _ := req.Value.(string)
			serr = s.Users.SetNotes(r.Context(), id, v)
		default:
			writeError(w, http.StatusBadRequest, "unknown field")
			return
		}
		if serr != nil {
			switch {
			case errors.Is(serr, domain.ErrNotFound):
				writeError(w, http.StatusNotFound, "user not found")
			case errors.Is(serr, domain.ErrInvalidArgument):
				writeError(w, http.StatusBadRequest, "invalid value")
			default:
				writeError(w, http.StatusInternalServerError, "update failed")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type notifyRequest struct {
	ChatIDs []int64 `json:"chat_ids"`
	Admins  bool    `json:"admins"`
	Text    string  `json:"text"`
}

// NotifyHandler fans text out to explicit chats and/or all admins.
func (s *Server) NotifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req notifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeError(w, http.StatusBadRequest, "bad body")
			return
		}
		targets := req.ChatIDs
		if req.Admins {
			ids, err := s.Users.AdminChatIDs(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "admin lookup failed")
				return
			}
			targets = append(targets, ids...)
		}
		s.Front.Notify(r.Context(), targets, req.Text)
		writeJSON(w, http.StatusOK, map[string]int{"sent": len(targets)})
	}
}
