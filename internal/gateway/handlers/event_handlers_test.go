package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/services"
	"github.com/gatherpoint/api/internal/gateway/types"
)

type mockGeocodeService struct {
	result types.GeocodeResult
	err    error
}

func (m *mockGeocodeService) Geocode(ctx context.Context, location string) (types.GeocodeResult, error) {
	return m.result, m.err
}

func newTestRouter(t *testing.T, geocode *mockGeocodeService) (*mux.Router, *services.EventStore) {
	t.Helper()
	store, err := services.NewEventStore(context.Background(), services.NewMemoryStorage(), services.NewMemoryBroadcaster())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if geocode == nil {
		geocode = &mockGeocodeService{}
	}
	handler := NewEventHandler(store, geocode)

	router := mux.NewRouter()
	router.HandleFunc("/api/events", handler.GetEvents).Methods("GET")
	router.HandleFunc("/api/events", handler.CreateEvent).Methods("POST")
	router.HandleFunc("/api/events/nearby", handler.GetNearbyEvents).Methods("GET")
	router.HandleFunc("/api/events/calendar", handler.GetEventsCalendar).Methods("GET")
	router.HandleFunc("/api/events/clusters", handler.GetEventClusters).Methods("GET")
	router.HandleFunc("/api/events/import", handler.ImportEvents).Methods("POST")
	router.HandleFunc("/api/events/export/csv", handler.ExportEventsCSV).Methods("GET")
	router.HandleFunc("/api/events/export/ics", handler.ExportEventsCalendar).Methods("GET")
	router.HandleFunc("/api/events/{"+helpers.EVENT_ID_KEY+"}", handler.GetEvent).Methods("GET")
	router.HandleFunc("/api/events/{"+helpers.EVENT_ID_KEY+"}", handler.UpdateEvent).Methods("PUT")
	router.HandleFunc("/api/events/{"+helpers.EVENT_ID_KEY+"}", handler.DeleteEvent).Methods("DELETE")
	router.HandleFunc("/api/location/geo", handler.GeoLookup).Methods("POST")
	return router, store
}

func doRequest(t *testing.T, router *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestGetEvents(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "GET", "/api/events", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res types.EventSearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Events) != 4 {
		t.Errorf("expected 4 seed events, got %d", len(res.Events))
	}
}

func TestGetEventsFiltered(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "GET", "/api/events?q=hackathon", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res types.EventSearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 1 || res.Events[0].Id != "3" {
		t.Errorf("expected only the hackathon event, got %+v", res.Events)
	}
	if res.Query != "hackathon" {
		t.Errorf("expected echoed query, got %q", res.Query)
	}
}

func TestGetEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "GET", "/api/events/2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var event types.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &event); err != nil {
		t.Fatal(err)
	}
	if event.Title != "Summer Tech Conference" {
		t.Errorf("unexpected event: %s", event.Title)
	}

	rr = doRequest(t, router, "GET", "/api/events/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", rr.Code)
	}
}

func TestCreateEvent(t *testing.T) {
	router, store := newTestRouter(t, nil)

	body := `{"title":"Neighborhood Cleanup","date":"2025-10-12T09:00:00Z","category":"Volunteering","tags":"parks, outdoors"}`
	rr := doRequest(t, router, "POST", "/api/events", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created types.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Id == "" {
		t.Error("expected a generated id")
	}
	if created.Status != types.EventStatusUpcoming {
		t.Errorf("expected default status, got %s", created.Status)
	}
	if len(created.Tags) != 2 {
		t.Errorf("comma-string tags not parsed: %v", created.Tags)
	}
	if len(store.Events()) != 5 {
		t.Errorf("event not stored")
	}
}

func TestCreateEventValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"title":`},
		{"missing title", `{"date":"2025-10-12T09:00:00Z","category":"X"}`},
		{"missing category", `{"title":"Y","date":"2025-10-12T09:00:00Z"}`},
		{"unparseable date", `{"title":"Y","date":"whenever ???","category":"X"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, "POST", "/api/events", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUpdateEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "PUT", "/api/events/1", `{"title":"Renamed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated types.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("title not updated: %s", updated.Title)
	}
	if updated.Category != "Workshop" {
		t.Errorf("unpatched field changed: %s", updated.Category)
	}
}

func TestUpdateEventUnknownIdReportsNoOp(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "PUT", "/api/events/ghost", `{"title":"x"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res["status"] != "no-op" || res["id"] != "ghost" {
		t.Errorf("unexpected no-op response: %v", res)
	}
}

func TestDeleteEvent(t *testing.T) {
	router, store := newTestRouter(t, nil)

	rr := doRequest(t, router, "DELETE", "/api/events/4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.Events()) != 3 {
		t.Error("event not deleted")
	}

	// idempotent, second call still succeeds
	rr = doRequest(t, router, "DELETE", "/api/events/4", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 on repeat delete, got %d", rr.Code)
	}
}

func TestGetNearbyEvents(t *testing.T) {
	router, store := newTestRouter(t, nil)

	lat, lon := 40.7128, -74.0060
	if _, err := store.Add(context.Background(), types.Event{
		Title: "Downtown Meetup", Date: "2025-10-01T18:00:00Z", Category: "Meetup",
		Latitude: &lat, Longitude: &lon,
	}); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(t, router, "GET", "/api/events/nearby?lat=40.7128&lon=-74.0060&radius=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res types.NearbyEventsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.RadiusKm != 5 {
		t.Errorf("expected radius 5, got %f", res.RadiusKm)
	}
	found := false
	for _, e := range res.Events {
		if e.Title == "Downtown Meetup" {
			found = true
			if e.Distance > 0.001 {
				t.Errorf("expected ~0 distance, got %f", e.Distance)
			}
		}
	}
	if !found {
		t.Error("co-located event missing from nearby results")
	}
}

func TestGetNearbyEventsBadParams(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, target := range []string{
		"/api/events/nearby",
		"/api/events/nearby?lat=abc&lon=0",
		"/api/events/nearby?lat=0&lon=abc",
		"/api/events/nearby?lat=0&lon=0&radius=-1",
	} {
		rr := doRequest(t, router, "GET", target, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestGetEventsCalendar(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "GET", "/api/events/calendar", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var byMonth map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &byMonth); err != nil {
		t.Fatal(err)
	}
	expected := map[string]int{"2025-06": 1, "2025-07": 1, "2025-08": 1, "2025-09": 1}
	for month, count := range expected {
		if byMonth[month] != count {
			t.Errorf("month %s: expected %d, got %d", month, count, byMonth[month])
		}
	}
}

func TestGetEventClusters(t *testing.T) {
	router, store := newTestRouter(t, nil)

	lat, lon := 40.7128, -74.0060
	if _, err := store.Add(context.Background(), types.Event{
		Title: "Mapped Meetup", Date: "2025-10-01T18:00:00Z", Category: "Meetup",
		Latitude: &lat, Longitude: &lon,
	}); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(t, router, "GET", "/api/events/clusters?zoom=8", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var clusters []types.EventCluster
	if err := json.Unmarshal(rr.Body.Bytes(), &clusters); err != nil {
		t.Fatal(err)
	}
	if len(clusters) == 0 {
		t.Error("expected at least one cluster")
	}

	rr = doRequest(t, router, "GET", "/api/events/clusters?zoom=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad zoom, got %d", rr.Code)
	}
}

func TestImportEvents(t *testing.T) {
	router, store := newTestRouter(t, nil)

	rr := doRequest(t, router, "POST", "/api/events/import",
		"title,date\nParty,2025-01-01T10:00:00Z\n,2025-01-02T10:00:00Z")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res types.ImportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", res.Imported)
	}
	if len(store.Events()) != 5 {
		t.Errorf("expected 5 events after import, got %d", len(store.Events()))
	}

	rr = doRequest(t, router, "POST", "/api/events/import", "title,date\n\"broken,row")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed CSV, got %d", rr.Code)
	}
}

func TestExportEventsCSV(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "GET", "/api/events/export/csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type: %s", ct)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "attachment") || !strings.Contains(disposition, helpers.CsvExportFilenamePrefix) {
		t.Errorf("unexpected disposition: %s", disposition)
	}
	if !strings.Contains(rr.Body.String(), `"Web Development Workshop"`) {
		t.Error("export body missing event row")
	}
}

func TestExportEventsCalendar(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doRequest(t, router, "GET", "/api/events/export/ics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type: %s", ct)
	}
	if !strings.Contains(rr.Body.String(), "BEGIN:VCALENDAR") {
		t.Error("export body is not an iCalendar document")
	}
}

func TestGeoLookup(t *testing.T) {
	geocode := &mockGeocodeService{result: types.GeocodeResult{
		Latitude:  40.7128,
		Longitude: -74.0060,
		Address:   "New York, NY, USA",
		Timezone:  "America/New_York",
	}}
	router, _ := newTestRouter(t, geocode)

	rr := doRequest(t, router, "POST", "/api/location/geo", `{"location":"New York"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res types.GeocodeResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Address != "New York, NY, USA" || res.Timezone != "America/New_York" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestGeoLookupErrors(t *testing.T) {
	router, _ := newTestRouter(t, &mockGeocodeService{err: fmt.Errorf("location is not valid")})

	rr := doRequest(t, router, "POST", "/api/location/geo", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing location, got %d", rr.Code)
	}

	rr = doRequest(t, router, "POST", "/api/location/geo", `{"location":"nowhere"}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for geocode failure, got %d", rr.Code)
	}
}
