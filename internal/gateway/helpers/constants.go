package helpers

import "os"

// EventsSnapshotKey is the single durable-storage key holding the
// JSON-serialized event collection.
const EventsSnapshotKey = "events"

// EventsSyncChannel is the fixed-name broadcast channel all open
// instances listen on.
const EventsSyncChannel = "events_sync_channel"

const EVENT_ID_KEY string = "eventId"

const DefaultSearchRadiusKm = 10.0

// CalendarEventDurationHours is the fixed assumed event length used by
// the calendar export; end time is always start + 2h.
const CalendarEventDurationHours = 2

const CsvExportFilenamePrefix = "events_export_"
const IcsExportFilenamePrefix = "events_calendar_"

func GetDbPath() string {
	if path := os.Getenv("SQLITE_DB_PATH"); path != "" {
		return path
	}
	return "gatherpoint.db"
}

func GetGeocodeBaseUrl() string {
	return os.Getenv("GEOCODE_API_URL_BASE")
}
