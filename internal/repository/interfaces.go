package repository

import (
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/session"
)

// SessionRepository manages open session persistence
type SessionRepository interface {
	session.Store
}

// EventRepository manages the append-only event log
type EventRepository interface {
	activity.Log
}
