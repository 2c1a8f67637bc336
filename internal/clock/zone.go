package clock

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civil date format used in reports and query strings.
const DateLayout = "2006-01-02"

// Zone computes local day, week and month boundaries for one IANA
// timezone. All boundaries are returned as absolute instants.
type Zone struct {
	loc *time.Location
}

// LoadZone resolves an IANA timezone name. An empty name means UTC.
func LoadZone(name string) (*Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return &Zone{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// UTC returns the zone used when no timezone is configured.
func UTC() *Zone {
	return &Zone{loc: time.UTC}
}

// Location returns the underlying *time.Location.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// Name returns the IANA name of the zone.
func (z *Zone) Name() string {
	return z.loc.String()
}

// In converts t to the zone's local time.
func (z *Zone) In(t time.Time) time.Time {
	return t.In(z.loc)
}

// StartOfDay returns local midnight of the day containing t.
func (z *Zone) StartOfDay(t time.Time) time.Time {
	lt := t.In(z.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, z.loc)
}

// NextDay returns local midnight of the day after the one containing t.
// Days across a DST change are 23 or 25 hours long.
func (z *Zone) NextDay(t time.Time) time.Time {
	lt := t.In(z.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+1, 0, 0, 0, 0, z.loc)
}

// StartOfWeek returns local midnight of the Monday on or before t.
func (z *Zone) StartOfWeek(t time.Time) time.Time {
	lt := t.In(z.loc)
	offset := (int(lt.Weekday()) + 6) % 7
	return time.Date(lt.Year(), lt.Month(), lt.Day()-offset, 0, 0, 0, 0, z.loc)
}

// StartOfMonth returns local midnight of the first day of t's month.
func (z *Zone) StartOfMonth(t time.Time) time.Time {
	lt := t.In(z.loc)
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, z.loc)
}

// LocalDate formats the local calendar date of t.
func (z *Zone) LocalDate(t time.Time) string {
	return t.In(z.loc).Format(DateLayout)
}

// ParseDate returns local midnight of a YYYY-MM-DD date.
func (z *Zone) ParseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return day, nil
}
