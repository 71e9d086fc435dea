package services

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/golang/geo/s2"
	"github.com/ringsaturn/tzf"

	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/types"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegLat   = 110.574
)

// DistanceKm computes great-circle distance between two coordinates
// (degrees) using the Haversine formula. Inputs are not range-checked;
// out-of-range values produce a mathematically defined but meaningless
// result.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// SyntheticCoordFn supplies a placeholder coordinate for an event that
// has not been geocoded, keyed by the event id.
type SyntheticCoordFn func(id string) (lat, lon float64)

// DefaultSyntheticCoord derives a deterministic placeholder from the
// md5 of the event id, so the same event always lands on the same spot
// across queries and instances.
func DefaultSyntheticCoord(id string) (float64, float64) {
	sum := md5.Sum([]byte(id))
	latBits := binary.BigEndian.Uint64(sum[0:8])
	lonBits := binary.BigEndian.Uint64(sum[8:16])
	lat := float64(latBits)/float64(math.MaxUint64)*180 - 90
	lon := float64(lonBits)/float64(math.MaxUint64)*360 - 180
	return lat, lon
}

// NearbyEvents annotates every event with its distance from the
// reference point, keeps those within radiusKm, and sorts ascending by
// distance. The sort is stable: ties keep collection order. Events
// without usable coordinates get a synthetic coordinate from synth
// (DefaultSyntheticCoord when nil) rather than being skipped.
func NearbyEvents(events []types.Event, refLat, refLon, radiusKm float64, synth SyntheticCoordFn) []types.DistancedEvent {
	if synth == nil {
		synth = DefaultSyntheticCoord
	}
	nearby := make([]types.DistancedEvent, 0, len(events))
	for _, event := range events {
		lat, lon := eventCoords(event, synth)
		distance := DistanceKm(refLat, refLon, lat, lon)
		if distance <= radiusKm {
			nearby = append(nearby, types.DistancedEvent{
				Event:     event,
				Distance:  distance,
				Latitude:  lat,
				Longitude: lon,
			})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].Distance < nearby[j].Distance
	})
	return nearby
}

func eventCoords(event types.Event, synth SyntheticCoordFn) (float64, float64) {
	if event.HasCoordinates() {
		return *event.Latitude, *event.Longitude
	}
	return synth(event.Id)
}

// EventsByMonth groups events by calendar month of their date,
// returning a "YYYY-MM" → count mapping. Events with unparseable dates
// are skipped with a diagnostic, never fatal.
func EventsByMonth(events []types.Event) map[string]int {
	byMonth := make(map[string]int)
	for _, event := range events {
		date, err := ParseEventDate(event.Date)
		if err != nil {
			log.Printf("skipping event %s in month summary: %v", event.Id, err)
			continue
		}
		key := fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
		byMonth[key]++
	}
	return byMonth
}

// kmToLat converts kilometers to latitude degrees
func kmToLat(km float64) float64 {
	return km / kmPerDegLat
}

// kmToLong converts kilometers to longitude degrees at a given latitude
func kmToLong(km float64, latitude float64) float64 {
	return km / (math.Cos(latitude*math.Pi/180) * kmPerDegLat)
}

// BoundingBox returns the lat/lon box enclosing a radius around a
// point, a cheap prefilter for storage backends that can range-scan.
func BoundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	return lat - kmToLat(radiusKm), lat + kmToLat(radiusKm),
		lon - kmToLong(radiusKm, lat), lon + kmToLong(radiusKm, lat)
}

// ClusterEvents buckets events into s2 cells at a level derived from
// the map zoom, producing one cluster per occupied cell with the
// centroid of its members. The dominant category drives the marker
// color.
func ClusterEvents(events []types.Event, zoom int, synth SyntheticCoordFn) []types.EventCluster {
	if synth == nil {
		synth = DefaultSyntheticCoord
	}
	level := cellLevelForZoom(zoom)

	type bucket struct {
		sumLat, sumLon float64
		ids            []string
		categories     map[string]int
	}
	buckets := make(map[s2.CellID]*bucket)
	order := make([]s2.CellID, 0)

	for _, event := range events {
		lat, lon := eventCoords(event, synth)
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(level)
		b, ok := buckets[cell]
		if !ok {
			b = &bucket{categories: make(map[string]int)}
			buckets[cell] = b
			order = append(order, cell)
		}
		b.sumLat += lat
		b.sumLon += lon
		b.ids = append(b.ids, event.Id)
		b.categories[event.Category]++
	}

	clusters := make([]types.EventCluster, 0, len(order))
	for _, cell := range order {
		b := buckets[cell]
		n := float64(len(b.ids))
		category := dominantCategory(b.categories)
		clusters = append(clusters, types.EventCluster{
			CellId:    cell.ToToken(),
			Count:     len(b.ids),
			Latitude:  b.sumLat / n,
			Longitude: b.sumLon / n,
			Category:  category,
			Color:     helpers.CategoryColor(category),
			EventIds:  b.ids,
		})
	}
	return clusters
}

func cellLevelForZoom(zoom int) int {
	// web-mercator zoom 0..18 maps roughly onto s2 levels 1..16
	level := zoom - 2
	if level < 1 {
		level = 1
	}
	if level > 16 {
		level = 16
	}
	return level
}

func dominantCategory(counts map[string]int) string {
	best, bestCount := "", -1
	for category, count := range counts {
		if count > bestCount || (count == bestCount && category < best) {
			best, bestCount = category, count
		}
	}
	return best
}

var (
	tzOnce   sync.Once
	tzFinder tzf.F
	tzErr    error
)

// TimezoneFor returns the IANA timezone name for a coordinate, or ""
// when the finder cannot resolve one. The finder is built lazily; it
// loads an embedded polygon set so construction is not free.
func TimezoneFor(lat, lon float64) string {
	tzOnce.Do(func() {
		tzFinder, tzErr = tzf.NewDefaultFinder()
	})
	if tzErr != nil {
		log.Printf("timezone finder unavailable: %v", tzErr)
		return ""
	}
	return tzFinder.GetTimezoneName(lon, lat)
}
