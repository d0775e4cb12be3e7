package users

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles user HTTP requests
type Handler struct {
	directory *Directory
	log       zerolog.Logger
}

// NewHandler creates a new user handler.
func NewHandler(directory *Directory, log zerolog.Logger) *Handler {
	return &Handler{
		directory: directory,
		log:       log.With().Str("handler", "users").Logger(),
	}
}

// RegisterRoutes mounts the user endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/user/{email}", h.HandleGetUser)
}

// HandleGetUser returns a user from the directory
// GET /api/user/{email}
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "email")
	user, ok := h.directory.Lookup(key)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("user '%s' not found", key)})
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
