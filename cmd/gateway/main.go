package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/gorillamux"
	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"

	"github.com/gatherpoint/api/internal/gateway/handlers"
	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/interfaces"
	"github.com/gatherpoint/api/internal/gateway/services"
)

type Route struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

type App struct {
	Router *mux.Router
	Store  interfaces.EventStoreInterface
}

func NewApp(store interfaces.EventStoreInterface, geocode interfaces.GeocodeServiceInterface) *App {
	app := &App{
		Router: mux.NewRouter(),
		Store:  store,
	}

	eventHandler := handlers.NewEventHandler(store, geocode)
	routes := []Route{
		{"/api/events", "GET", eventHandler.GetEvents},
		{"/api/events", "POST", eventHandler.CreateEvent},
		{"/api/events/nearby", "GET", eventHandler.GetNearbyEvents},
		{"/api/events/calendar", "GET", eventHandler.GetEventsCalendar},
		{"/api/events/clusters", "GET", eventHandler.GetEventClusters},
		{"/api/events/import", "POST", eventHandler.ImportEvents},
		{"/api/events/export/csv", "GET", eventHandler.ExportEventsCSV},
		{"/api/events/export/ics", "GET", eventHandler.ExportEventsCalendar},
		{"/api/events/{" + helpers.EVENT_ID_KEY + "}", "GET", eventHandler.GetEvent},
		{"/api/events/{" + helpers.EVENT_ID_KEY + "}", "PUT", eventHandler.UpdateEvent},
		{"/api/events/{" + helpers.EVENT_ID_KEY + "}", "DELETE", eventHandler.DeleteEvent},
		{"/api/location/geo", "POST", eventHandler.GeoLookup},
	}
	for _, route := range routes {
		app.Router.HandleFunc(route.Path, route.Handler).Methods(route.Method).Name(route.Method + " " + route.Path)
	}

	app.SetupNotFoundHandler()
	return app
}

func (app *App) SetupNotFoundHandler() {
	app.Router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Println("Not found", r.RequestURI)
		http.Error(w, fmt.Sprintf("Not found: %s", r.RequestURI), http.StatusNotFound)
	})
}

func newStorage() interfaces.SnapshotStorage {
	storage, err := services.OpenSQLiteStorage(helpers.GetDbPath())
	if err != nil {
		log.Printf("ERR: opening sqlite storage, falling back to in-memory: %v", err)
		return services.NewMemoryStorage()
	}
	return storage
}

func newBroadcaster() interfaces.SnapshotBroadcaster {
	if os.Getenv("NATS_URL") == "" {
		log.Println("NATS_URL not set, cross-instance sync disabled")
		return services.NewMemoryBroadcaster()
	}
	conn, err := services.GetNatsClient()
	if err != nil {
		log.Printf("ERR: connecting to NATS, cross-instance sync disabled: %v", err)
		return services.NewMemoryBroadcaster()
	}
	return services.NewNatsBroadcaster(conn, helpers.EventsSyncChannel)
}

func main() {
	ctx := context.Background()

	storage := newStorage()
	broadcaster := newBroadcaster()
	store, err := services.NewEventStore(ctx, storage, broadcaster)
	if err != nil {
		log.Fatalf("failed to initialize event store: %v", err)
	}
	defer store.Close()

	app := NewApp(store, services.NewGeocodeService())

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		adapter := gorillamux.NewV2(app.Router)
		lambda.Start(func(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
			return adapter.ProxyWithContext(ctx, request)
		})
		return
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	log.Printf("listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, app.Router))
}
