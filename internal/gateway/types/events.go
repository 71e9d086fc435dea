package types

import (
	"encoding/json"
	"math"
	"strings"
)

type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// TagList accepts either a JSON array of strings or a single
// comma-separated string, normalizing to trimmed entries with
// empties removed.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var asSlice []string
	if err := json.Unmarshal(data, &asSlice); err == nil {
		*t = NormalizeTags(asSlice)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return err
	}
	*t = SplitTags(asString)
	return nil
}

// SplitTags turns "a, b ,, c" into ["a","b","c"]
func SplitTags(s string) TagList {
	return NormalizeTags(strings.Split(s, ","))
}

func NormalizeTags(tags []string) TagList {
	out := make(TagList, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type Event struct {
	Id                   string      `json:"id,omitempty"`
	Title                string      `json:"title" validate:"required"`
	Description          string      `json:"description"`
	Date                 string      `json:"date" validate:"required"`
	Location             string      `json:"location"`
	Category             string      `json:"category" validate:"required"`
	Capacity             int         `json:"capacity,omitempty"`
	Attendees            int         `json:"attendees,omitempty"`
	Image                string      `json:"image,omitempty"`
	ImageUrl             string      `json:"imageUrl,omitempty"`
	Tags                 TagList     `json:"tags,omitempty"`
	Status               EventStatus `json:"status,omitempty"`
	RegistrationRequired bool        `json:"registrationRequired"`
	RegistrationUrl      string      `json:"registrationUrl,omitempty"`
	OrganizerId          string      `json:"organizerId,omitempty"`
	CreatedAt            string      `json:"createdAt,omitempty"`
	UpdatedAt            string      `json:"updatedAt,omitempty"`
	Latitude             *float64    `json:"latitude,omitempty"`
	Longitude            *float64    `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the event carries usable geolocation.
// NaN or out-of-range values count as absent.
func (e *Event) HasCoordinates() bool {
	if e.Latitude == nil || e.Longitude == nil {
		return false
	}
	lat, lon := *e.Latitude, *e.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// EventPatch is a partial update: nil fields are retained,
// non-nil fields replace the existing values.
type EventPatch struct {
	Title                *string      `json:"title,omitempty"`
	Description          *string      `json:"description,omitempty"`
	Date                 *string      `json:"date,omitempty"`
	Location             *string      `json:"location,omitempty"`
	Category             *string      `json:"category,omitempty"`
	Capacity             *int         `json:"capacity,omitempty"`
	Attendees            *int         `json:"attendees,omitempty"`
	Image                *string      `json:"image,omitempty"`
	ImageUrl             *string      `json:"imageUrl,omitempty"`
	Tags                 *TagList     `json:"tags,omitempty"`
	Status               *EventStatus `json:"status,omitempty"`
	RegistrationRequired *bool        `json:"registrationRequired,omitempty"`
	RegistrationUrl      *string      `json:"registrationUrl,omitempty"`
	OrganizerId          *string      `json:"organizerId,omitempty"`
	Latitude             *float64     `json:"latitude,omitempty"`
	Longitude            *float64     `json:"longitude,omitempty"`
}

// DistancedEvent is a transient read-side view: the event plus the
// computed distance from a reference point and the coordinates the
// computation actually used (synthetic ones included). Never persisted.
type DistancedEvent struct {
	Event
	Distance  float64 `json:"distance"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type EventCluster struct {
	CellId    string   `json:"cellId"`
	Count     int      `json:"count"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Category  string   `json:"category"`
	Color     string   `json:"color"`
	EventIds  []string `json:"eventIds"`
}

type EventSearchResponse struct {
	Events []Event `json:"events"`
	Query  string  `json:"query,omitempty"`
}

type NearbyEventsResponse struct {
	Events   []DistancedEvent `json:"events"`
	RadiusKm float64          `json:"radiusKm"`
}

type ImportResponse struct {
	Imported int `json:"imported"`
}

type GeocodeResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Timezone  string  `json:"timezone,omitempty"`
}

const EventsUpdatedType = "EVENTS_UPDATED"

// EventsSyncMessage is the broadcast payload sent after every mutation.
// Origin carries the publishing instance id so an instance can ignore
// its own messages when the transport echoes them back.
type EventsSyncMessage struct {
	Type   string  `json:"type"`
	Origin string  `json:"origin,omitempty"`
	Events []Event `json:"events"`
}
