package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/wildfire-hex-etl/internal/fields"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/layer"
	"github.com/couchcryptid/wildfire-hex-etl/internal/render"
)

// LayerAPI is the query surface served under /api.
// It is implemented by layer.Service.
type LayerAPI interface {
	Fields() []fields.Field
	Layer(ctx context.Context, date time.Time, field string, policy fields.Policy) (render.Overlay, error)
	Colorbar(field string, ticks int) (render.Legend, error)
	Inspect(ctx context.Context, hexID string, date time.Time) (layer.Inspection, error)
	WeeklyFires(ctx context.Context, from, to time.Time) ([]layer.WeekCount, error)
}

type handlers struct {
	api    LayerAPI
	logger *slog.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handlers) listFields(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.api.Fields())
}

func (h *handlers) getLayer(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"date must be YYYY-MM-DD"})
		return
	}
	policy, err := fields.ParsePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
		return
	}
	ov, err := h.api.Layer(r.Context(), date, chi.URLParam(r, "field"), policy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	writeBody(w, ov)
}

func (h *handlers) getColorbar(w http.ResponseWriter, r *http.Request) {
	ticks := render.DefaultTicks
	if s := r.URL.Query().Get("ticks"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{"ticks must be an integer"})
			return
		}
		ticks = n
	}
	lg, err := h.api.Colorbar(chi.URLParam(r, "field"), ticks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lg)
}

func (h *handlers) getHex(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(time.DateOnly, r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"date query parameter must be YYYY-MM-DD"})
		return
	}
	got, err := h.api.Inspect(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (h *handlers) getWeeklyFires(w http.ResponseWriter, r *http.Request) {
	var bounds [2]time.Time
	for i, name := range []string{"from", "to"} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{name + " must be YYYY-MM-DD"})
			return
		}
		bounds[i] = d
	}
	if !bounds[0].IsZero() && !bounds[1].IsZero() && bounds[1].Before(bounds[0]) {
		writeJSON(w, http.StatusBadRequest, errorBody{"to must not be before from"})
		return
	}
	weeks, err := h.api.WeeklyFires(r.Context(), bounds[0], bounds[1])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weeks)
}

// writeError maps service errors onto status codes.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fields.ErrUnknownField),
		errors.Is(err, layer.ErrNoData),
		errors.Is(err, hexgrid.ErrUnknownCell):
		writeJSON(w, http.StatusNotFound, errorBody{err.Error()})
	case errors.Is(err, render.ErrTooFewTicks):
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"internal error"})
	}
}

func writeBody(w http.ResponseWriter, v any) {
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
