package helpers

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

func FormatDate(d string) string {
	date, err := time.Parse(time.RFC3339, d)
	if err != nil {
		return "Invalid date"
	}
	return date.Format("Jan 2, 2006 (Mon)")
}

func FormatTime(t string) string {
	_time, err := time.Parse(time.RFC3339, t)
	if err != nil {
		return "Invalid time"
	}
	return _time.Format("3:04pm")
}

// CategoryColor returns a stable hex color for a category name, used
// for map markers and cluster badges. Hue comes from a hash of the
// name so the same category always renders the same color.
func CategoryColor(category string) string {
	h := fnv.New32a()
	h.Write([]byte(category))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsv(hue, 0.65, 0.85).Hex()
}

func ExportFilename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s%s.%s", prefix, now.Format("2006-01-02"), ext)
}
