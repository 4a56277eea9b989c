package concierge

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
)

// ViewerHeader names the browser a request belongs to.
const ViewerHeader = "X-Viewer-ID"

type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger.Named("http")}
}

func (h *Handler) svc(r *http.Request) Service {
	return h.hub.Get(r.Header.Get(ViewerHeader))
}

type personaView struct {
	catalog.PersonaStub
	HasSnapshot bool `json:"hasSnapshot"`
}

func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	cached := h.svc(r).Cached()
	stubs := h.hub.Personas().Stubs()
	out := make([]personaView, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, personaView{PersonaStub: s, HasSnapshot: slices.Contains(cached, s.ID)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SelectPersona(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc(r).SelectPersona(r.Context(), chi.URLParam(r, "key"))
	h.respond(w, st, err)
}

func (h *Handler) ForgetPersona(w http.ResponseWriter, r *http.Request) {
	h.svc(r).Invalidate(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	t := h.hub.Transcript()
	if t == nil {
		http.Error(w, "transcript disabled", http.StatusNotFound)
		return
	}
	viewer := r.Header.Get(ViewerHeader)
	if viewer == "" {
		viewer = DefaultViewer
	}
	msgs, err := t.GetHistory(r.Context(), viewer, chi.URLParam(r, "key"))
	if err != nil {
		h.logger.Error("transcript read failed", zap.Error(err))
		http.Error(w, "transcript unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc(r).State())
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	st, err := h.svc(r).SendMessage(r.Context(), payload.Text)
	h.respond(w, st, err)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc(r).Refresh(r.Context())
	h.respond(w, st, err)
}

func (h *Handler) Remember(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	st, err := h.svc(r).Remember(r.Context(), payload.Name, payload.Email)
	h.respond(w, st, err)
}

func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc(r).State().Scene)
}

func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc(r).OpenCheckout())
}

func (h *Handler) CloseCheckout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc(r).CloseCheckout())
}

func (h *Handler) ResetScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc(r).ResetScene())
}

// respond always sends the state; the status tells the client whether the
// call did what it asked.
func (h *Handler) respond(w http.ResponseWriter, st State, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, catalog.ErrUnknownPersona):
		writeJSON(w, http.StatusNotFound, st)
	case errors.Is(err, ErrEmpty):
		writeJSON(w, http.StatusBadRequest, st)
	case errors.Is(err, ErrNoPersona), errors.Is(err, ErrSuperseded):
		writeJSON(w, http.StatusConflict, st)
	default:
		h.logger.Warn("request failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, st)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
