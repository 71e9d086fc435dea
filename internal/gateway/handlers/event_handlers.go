package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"

	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/interfaces"
	"github.com/gatherpoint/api/internal/gateway/services"
	"github.com/gatherpoint/api/internal/gateway/transport"
	"github.com/gatherpoint/api/internal/gateway/types"
)

var validate *validator.Validate = validator.New()

type EventHandler struct {
	Store   interfaces.EventStoreInterface
	Geocode interfaces.GeocodeServiceInterface
}

func NewEventHandler(store interfaces.EventStoreInterface, geocode interfaces.GeocodeServiceInterface) *EventHandler {
	return &EventHandler{Store: store, Geocode: geocode}
}

// GetEvents returns the full collection, or a filtered subset when a
// `q` query parameter is present (case-insensitive substring over
// title, description, category, and location).
func (h *EventHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	var events []types.Event
	if query != "" {
		events = h.Store.Filter(query)
	} else {
		events = h.Store.Events()
	}
	transport.SendJSONRes(w, types.EventSearchResponse{Events: events, Query: query}, http.StatusOK)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)[helpers.EVENT_ID_KEY]
	event, ok := h.Store.GetByID(id)
	if !ok {
		transport.SendErrorRes(w, "event not found: "+id, http.StatusNotFound, nil)
		return
	}
	transport.SendJSONRes(w, event, http.StatusOK)
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		transport.SendErrorRes(w, "failed to read request body", http.StatusBadRequest, err)
		return
	}

	var event types.Event
	if err := json.Unmarshal(body, &event); err != nil {
		transport.SendErrorRes(w, "invalid JSON payload", http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(&event); err != nil {
		transport.SendErrorRes(w, "invalid event: "+err.Error(), http.StatusBadRequest, err)
		return
	}
	if _, err := services.ParseEventDate(event.Date); err != nil {
		transport.SendErrorRes(w, "invalid event date: "+event.Date, http.StatusBadRequest, err)
		return
	}

	created, err := h.Store.Add(r.Context(), event)
	if err != nil {
		transport.SendErrorRes(w, "failed to create event", http.StatusInternalServerError, err)
		return
	}
	transport.SendJSONRes(w, created, http.StatusCreated)
}

func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)[helpers.EVENT_ID_KEY]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		transport.SendErrorRes(w, "failed to read request body", http.StatusBadRequest, err)
		return
	}
	var patch types.EventPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		transport.SendErrorRes(w, "invalid JSON payload", http.StatusBadRequest, err)
		return
	}

	updated, err := h.Store.Update(r.Context(), id, patch)
	if err != nil {
		transport.SendErrorRes(w, "failed to update event", http.StatusInternalServerError, err)
		return
	}
	// unknown id is a no-op by store policy; report it as such
	if updated.Id == "" {
		transport.SendJSONRes(w, map[string]string{"status": "no-op", "id": id}, http.StatusOK)
		return
	}
	transport.SendJSONRes(w, updated, http.StatusOK)
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)[helpers.EVENT_ID_KEY]
	if err := h.Store.Delete(r.Context(), id); err != nil {
		transport.SendErrorRes(w, "failed to delete event", http.StatusInternalServerError, err)
		return
	}
	transport.SendJSONRes(w, map[string]string{"status": "deleted", "id": id}, http.StatusOK)
}

// GetNearbyEvents returns events within radiusKm of (lat, lon),
// nearest first, each annotated with its distance.
func (h *EventHandler) GetNearbyEvents(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		transport.SendErrorRes(w, "invalid or missing lat", http.StatusBadRequest, err)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		transport.SendErrorRes(w, "invalid or missing lon", http.StatusBadRequest, err)
		return
	}
	radiusKm := helpers.DefaultSearchRadiusKm
	if raw := r.URL.Query().Get("radius"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil || radiusKm < 0 {
			transport.SendErrorRes(w, "invalid radius", http.StatusBadRequest, err)
			return
		}
	}

	nearby := services.NearbyEvents(h.Store.Events(), lat, lon, radiusKm, nil)
	transport.SendJSONRes(w, types.NearbyEventsResponse{Events: nearby, RadiusKm: radiusKm}, http.StatusOK)
}

// GetEventsCalendar returns the "YYYY-MM" → count summary feeding the
// calendar year view.
func (h *EventHandler) GetEventsCalendar(w http.ResponseWriter, r *http.Request) {
	byMonth := services.EventsByMonth(h.Store.Events())
	transport.SendJSONRes(w, byMonth, http.StatusOK)
}

// GetEventClusters returns map-marker clusters for a given zoom level.
func (h *EventHandler) GetEventClusters(w http.ResponseWriter, r *http.Request) {
	zoom := 8
	if raw := r.URL.Query().Get("zoom"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			transport.SendErrorRes(w, "invalid zoom", http.StatusBadRequest, err)
			return
		}
		zoom = parsed
	}
	clusters := services.ClusterEvents(h.Store.Events(), zoom, nil)
	transport.SendJSONRes(w, clusters, http.StatusOK)
}

// ImportEvents ingests CSV from the request body and reports how many
// rows survived validation.
func (h *EventHandler) ImportEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		transport.SendErrorRes(w, "failed to read request body", http.StatusBadRequest, err)
		return
	}
	count, err := h.Store.ImportCSV(r.Context(), string(body))
	if err != nil {
		transport.SendErrorRes(w, "failed to import events: "+err.Error(), http.StatusBadRequest, err)
		return
	}
	transport.SendJSONRes(w, types.ImportResponse{Imported: count}, http.StatusOK)
}

func (h *EventHandler) ExportEventsCSV(w http.ResponseWriter, r *http.Request) {
	csvText := h.Store.ExportCSV()
	filename := helpers.ExportFilename(helpers.CsvExportFilenamePrefix, "csv", time.Now())
	transport.SendFileRes(w, []byte(csvText), "text/csv; charset=utf-8", filename)
}

func (h *EventHandler) ExportEventsCalendar(w http.ResponseWriter, r *http.Request) {
	icsText, err := h.Store.ExportCalendar()
	if err != nil {
		transport.SendErrorRes(w, "failed to export calendar", http.StatusInternalServerError, err)
		return
	}
	filename := helpers.ExportFilename(helpers.IcsExportFilenamePrefix, "ics", time.Now())
	transport.SendFileRes(w, []byte(icsText), "text/calendar; charset=utf-8", filename)
}

// GeoLookup resolves a location string to coordinates, display
// address, and IANA timezone.
func (h *EventHandler) GeoLookup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Location string `json:"location" validate:"required"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		transport.SendErrorRes(w, "failed to read request body", http.StatusBadRequest, err)
		return
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		transport.SendErrorRes(w, "invalid JSON payload", http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(&payload); err != nil {
		transport.SendErrorRes(w, "location is required", http.StatusBadRequest, err)
		return
	}

	result, err := h.Geocode.Geocode(r.Context(), payload.Location)
	if err != nil {
		transport.SendErrorRes(w, fmt.Sprintf("failed to geocode %q", payload.Location), http.StatusBadGateway, err)
		return
	}
	transport.SendJSONRes(w, result, http.StatusOK)
}
