package concierge

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/personas", h.ListPersonas)
	r.Post("/personas/{key}/select", h.SelectPersona)
	r.Delete("/personas/{key}/snapshot", h.ForgetPersona)
	r.Get("/personas/{key}/transcript", h.Transcript)

	r.Get("/session", h.GetSession)
	r.Post("/session/messages", h.SendMessage)
	r.Post("/session/refresh", h.Refresh)
	r.Post("/session/remember", h.Remember)

	r.Get("/scene", h.GetScene)
	r.Post("/scene/checkout", h.OpenCheckout)
	r.Delete("/scene/checkout", h.CloseCheckout)
	r.Post("/scene/reset", h.ResetScene)
}
