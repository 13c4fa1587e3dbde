package rest

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/syntrixbase/tripsync/internal/store"
	"github.com/syntrixbase/tripsync/internal/tripservice"
	"github.com/syntrixbase/tripsync/pkg/model"
)

func (h *Handler) handleListTrips(w http.ResponseWriter, r *http.Request) {
	var q ListTripsQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		slog.Warn("ListTrips: invalid query parameters", "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid query parameters")
		return
	}
	if err := validate.Struct(&q); err != nil {
		writeDecodeError(w, toValidationErrors(err))
		return
	}

	limit := q.Limit
	if limit == 0 {
		limit = h.cfg.DefaultListLimit
	}
	if limit > h.cfg.MaxListLimit {
		limit = h.cfg.MaxListLimit
	}

	trips, err := h.trips.GetAll(r.Context(), store.ListOptions{Status: q.Status, Limit: limit})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TripListResponse{Trips: trips, Count: len(trips)})
}

func (h *Handler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *Handler) handleGetTripByNumber(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.GetByNumber(r.Context(), r.PathValue("tripNumber"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *Handler) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAndValidate[CreateTripRequest](r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	create := tripservice.CreateRequest{
		TripNumber: strings.TrimSpace(req.TripNumber),
		DriverID:   req.DriverID,
		VehicleID:  req.VehicleID,
	}
	if req.StartTime != nil {
		create.StartTime = *req.StartTime
	}

	trip, err := h.trips.Create(r.Context(), create)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("Trip created", "trip_id", trip.ID, "trip_number", trip.TripNumber)
	w.Header().Set("Location", "/api/trips/"+trip.ID)
	writeJSON(w, http.StatusCreated, trip)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAndValidate[UpdateStatusRequest](r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	id := r.PathValue("id")
	var updated *model.Trip
	if req.DriverID == "" && req.VehicleID == "" {
		updated, err = h.trips.UpdateStatus(r.Context(), id, req.Status)
	} else {
		updated, err = h.trips.Update(r.Context(), id, req.Status, req.DriverID, req.VehicleID)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCompleteTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *Handler) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := h.trips.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	records := h.deadLetters.Records()
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   h.deadLetters.Total(),
		"asOf":    time.Now().UTC(),
	})
}
