package grid

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // Haystack zone names must resolve without a system zoneinfo.
)

// Haystack names a zone by the last component of its IANA identifier,
// e.g. "New_York" for "America/New_York". These are the regions searched
// when resolving a short name.
var zoneRegions = []string{
	"America", "Europe", "Asia", "Africa", "Australia", "Pacific",
	"Atlantic", "Indian", "Antarctica", "Arctic", "Etc",
}

var zoneCache sync.Map // short name -> *time.Location

// LoadZone resolves a Haystack zone name ("Paris", "UTC", "GMT+5") or a
// full IANA identifier to a location.
func LoadZone(name string) (*time.Location, error) {
	switch name {
	case "", "UTC", "Z", "z":
		return time.UTC, nil
	}
	if loc, ok := zoneCache.Load(name); ok {
		return loc.(*time.Location), nil
	}

	var candidates []string
	switch {
	case strings.Contains(name, "/"):
		candidates = []string{name}
	case strings.HasPrefix(name, "GMT"):
		candidates = []string{"Etc/" + name}
	default:
		candidates = make([]string, 0, len(zoneRegions))
		for _, region := range zoneRegions {
			candidates = append(candidates, region+"/"+name)
		}
	}

	for _, c := range candidates {
		loc, err := time.LoadLocation(c)
		if err == nil {
			zoneCache.Store(name, loc)
			return loc, nil
		}
	}
	return nil, fmt.Errorf("unknown time zone %q", name)
}

// ZoneName returns the Haystack name of loc. Unnamed fixed offsets are
// named after the matching Etc/GMT zone when the offset is a whole number
// of hours, and "UTC" otherwise.
func ZoneName(loc *time.Location) string {
	if loc == nil || loc == time.UTC {
		return "UTC"
	}
	name := loc.String()
	if name == "Local" || name == "" {
		_, offset := time.Now().In(loc).Zone()
		return fixedZoneName(offset)
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func fixedZoneName(offset int) string {
	if offset == 0 || offset%3600 != 0 {
		return "UTC"
	}
	// Etc/GMT zones use POSIX sign: GMT+5 is five hours behind UTC.
	hours := -offset / 3600
	if hours > 0 {
		return fmt.Sprintf("GMT+%d", hours)
	}
	return fmt.Sprintf("GMT%d", hours)
}
