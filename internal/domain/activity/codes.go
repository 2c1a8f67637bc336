package activity

import (
	"errors"
	"strings"
)

// ErrUnknownCode is returned by ParseCode for unrecognized input.
var ErrUnknownCode = errors.New("unknown activity code")

// Code is the closed set of activity signals a member can emit.
type Code string

const (
	CheckIn  Code = "check_in"
	CheckOut Code = "check_out"
	Restroom Code = "restroom"
	Meal     Code = "meal"
	Errand   Code = "errand"
	Leave    Code = "leave"
	Medical  Code = "medical"
)

var allCodes = []Code{CheckIn, CheckOut, Restroom, Meal, Errand, Leave, Medical}

// Codes returns every activity code in declaration order.
func Codes() []Code {
	out := make([]Code, len(allCodes))
	copy(out, allCodes)
	return out
}

// IntervalCodes returns the codes that open and close a session.
func IntervalCodes() []Code {
	return []Code{Restroom, Meal, Errand}
}

// Valid reports whether c is one of the seven codes.
func (c Code) Valid() bool {
	switch c {
	case CheckIn, CheckOut, Restroom, Meal, Errand, Leave, Medical:
		return true
	}
	return false
}

// IsInterval reports whether c has a start and an end.
func (c Code) IsInterval() bool {
	switch c {
	case Restroom, Meal, Errand:
		return true
	}
	return false
}

// Label returns the human-readable label of c.
func (c Code) Label() string {
	switch c {
	case CheckIn:
		return "Check in"
	case CheckOut:
		return "Check out"
	case Restroom:
		return "Restroom"
	case Meal:
		return "Meal"
	case Errand:
		return "Errand"
	case Leave:
		return "Leave"
	case Medical:
		return "Medical leave"
	}
	return string(c)
}

var aliases = map[string]Code{
	"in":         CheckIn,
	"checkin":    CheckIn,
	"arrive":     CheckIn,
	"out":        CheckOut,
	"checkout":   CheckOut,
	"off":        CheckOut,
	"wc":         Restroom,
	"toilet":     Restroom,
	"bathroom":   Restroom,
	"eat":        Meal,
	"lunch":      Meal,
	"dinner":     Meal,
	"out_errand": Errand,
	"away":       Errand,
	"vacation":   Leave,
	"sick":       Medical,
}

// ParseCode maps a canonical name, label or chat alias to a Code.
// Matching is case-insensitive and ignores a leading slash.
func ParseCode(raw string) (Code, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", ErrUnknownCode
	}
	for _, c := range allCodes {
		if key == string(c) || key == strings.ToLower(c.Label()) {
			return c, nil
		}
	}
	if c, ok := aliases[strings.ReplaceAll(key, " ", "_")]; ok {
		return c, nil
	}
	return "", ErrUnknownCode
}
