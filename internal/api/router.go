package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Post("/streams/start", app.StartStreamHandler)
	r.Post("/streams/stop", app.StopStreamHandler)
	r.Get("/streams/{id}/status", app.StatusHandler)
	r.Get("/streams/{id}/preview", app.PreviewHandler)
	r.Get("/streams/{id}/feed", app.FeedHandler)
	r.Get("/streams/{id}/results", app.ResultsHandler)

	r.Get("/records", app.RecordsHandler)

	return r
}
