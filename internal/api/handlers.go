package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/database"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/imaging"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/session"
)

type App struct {
	Sessions *session.Manager
	Records  *database.RecordRepository
	Logger   *slog.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type startStreamRequest struct {
	SourceURL string `json:"source_url"`
	StreamID  string `json:"stream_id"`
}

func (app *App) StartStreamHandler(w http.ResponseWriter, r *http.Request) {
	var req startStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceURL == "" {
		app.respondError(w, http.StatusBadRequest, "source_url is required")
		return
	}

	streamID, err := app.Sessions.Start(req.SourceURL, req.StreamID)
	if err != nil {
		if errors.Is(err, session.ErrSessionExists) {
			app.respondError(w, http.StatusBadRequest, "stream already running")
			return
		}
		app.Logger.Error("failed to start stream", "error", err)
		app.respondError(w, http.StatusInternalServerError, "failed to start stream")
		return
	}

	app.respondJSON(w, http.StatusOK, map[string]string{
		"stream_id": streamID,
		"status":    "started",
	})
}

type stopStreamRequest struct {
	StreamID string `json:"stream_id"`
}

func (app *App) StopStreamHandler(w http.ResponseWriter, r *http.Request) {
	var req stopStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StreamID == "" {
		app.respondError(w, http.StatusBadRequest, "stream_id is required")
		return
	}

	if err := app.Sessions.Stop(req.StreamID); err != nil {
		app.respondError(w, http.StatusNotFound, "stream not found")
		return
	}

	app.respondJSON(w, http.StatusOK, map[string]string{
		"stream_id": req.StreamID,
		"status":    "stopped",
	})
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	proc, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		app.respondError(w, http.StatusNotFound, "stream not found")
		return
	}

	stats := proc.Stats()
	app.respondJSON(w, http.StatusOK, map[string]any{
		"running":         proc.IsRunning(),
		"fps":             stats.FPS,
		"frames_ingested": stats.FramesIngested,
		"frames_dropped":  stats.FramesDropped,
		"tasks_dropped":   stats.TasksDropped,
	})
}

// PreviewHandler serves the latest annotated frame as a single JPEG. 204 when
// the pipeline has not produced one yet.
func (app *App) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	proc, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		app.respondError(w, http.StatusNotFound, "stream not found")
		return
	}

	frame, ok := proc.DisplayFrame()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := imaging.EncodeJPEG(frame)
	if err != nil {
		app.Logger.Error("failed to encode preview frame", "error", err)
		app.respondError(w, http.StatusInternalServerError, "failed to encode frame")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// FeedHandler streams annotated frames as MJPEG until the client disconnects
// or the session stops.
func (app *App) FeedHandler(w http.ResponseWriter, r *http.Request) {
	proc, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		app.respondError(w, http.StatusNotFound, "stream not found")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	for proc.IsRunning() {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame, ok := proc.DisplayFrame()
		if !ok {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		data, err := imaging.EncodeJPEG(frame)
		if err != nil {
			app.Logger.Error("failed to encode feed frame", "error", err)
			continue
		}

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprint(w, "\r\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func (app *App) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	proc, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		app.respondError(w, http.StatusNotFound, "stream not found")
		return
	}

	app.respondJSON(w, http.StatusOK, map[string]any{
		"plates": proc.Results(),
	})
}

// RecordsHandler serves the archived records for a stream from the database.
func (app *App) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("stream_id")
	if streamID == "" {
		app.respondError(w, http.StatusBadRequest, "stream_id is required")
		return
	}

	records, err := app.Records.RecentByStream(streamID, 50)
	if err != nil {
		app.Logger.Error("failed to load records", "stream_id", streamID, "error", err)
		app.respondError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	if records == nil {
		records = []*database.PlateRecord{}
	}

	app.respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
	})
}

func (app *App) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		app.Logger.Error("failed to encode response", "error", err)
	}
}

func (app *App) respondError(w http.ResponseWriter, status int, message string) {
	app.respondJSON(w, status, map[string]string{"error": message})
}
