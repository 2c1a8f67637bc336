package activity

import "time"

// ListOptions provides filtering options for reading the event log.
// Since is inclusive and Until is exclusive; zero values leave the bound open.
type ListOptions struct {
	GroupID  int64
	PersonID *int64
	Codes    []Code
	Since    time.Time
	Until    time.Time
	Limit    int
}
