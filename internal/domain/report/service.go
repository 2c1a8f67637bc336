package report

import (
	"context"
	"fmt"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/domain/activity"
	"go.uber.org/zap"
)

// Observer receives the latency of every report built.
type Observer interface {
	ObserveReport(kind string, elapsed time.Duration, err error)
}

// Service binds the aggregation functions to the event log and the
// configured timezone. It never takes per-person locks.
type Service struct {
	events   activity.Log
	zone     *clock.Zone
	clock    clock.Clock
	logger   *zap.Logger
	observer Observer
}

// NewService creates a new report service.
func NewService(events activity.Log, zone *clock.Zone, clk clock.Clock, logger *zap.Logger) *Service {
	if zone == nil {
		zone = clock.UTC()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: events, zone: zone, clock: clk, logger: logger}
}

// SetObserver registers an observer for report latency.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Zone returns the timezone reports are evaluated in.
func (s *Service) Zone() *clock.Zone {
	return s.zone
}

// Daily summarizes the group since local midnight.
func (s *Service) Daily(ctx context.Context, groupID int64) (*GroupReport, error) {
	return s.Group(ctx, groupID, PeriodDaily)
}

// Weekly summarizes the group since Monday's local midnight.
func (s *Service) Weekly(ctx context.Context, groupID int64) (*GroupReport, error) {
	return s.Group(ctx, groupID, PeriodWeekly)
}

// Monthly summarizes the group since the first of the local month.
func (s *Service) Monthly(ctx context.Context, groupID int64) (*GroupReport, error) {
	return s.Group(ctx, groupID, PeriodMonthly)
}

// Group summarizes the window from the start of period up to and including
// now. Events stamped after now are left out until their time comes.
func (s *Service) Group(ctx context.Context, groupID int64, period Period) (rep *GroupReport, err error) {
	defer s.observe(string(period), time.Now(), &err)

	now := s.clock.Now()
	var since time.Time
	switch period {
	case PeriodDaily:
		since = s.zone.StartOfDay(now)
	case PeriodWeekly:
		since = s.zone.StartOfWeek(now)
	case PeriodMonthly:
		since = s.zone.StartOfMonth(now)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	events, err := s.events.List(ctx, activity.ListOptions{
		GroupID: groupID,
		Since:   since,
		Until:   now.Add(time.Nanosecond),
	})
	if err != nil {
		return nil, fmt.Errorf("querying events since %s: %w", since.Format(time.RFC3339), err)
	}

	s.logger.Debug("group report",
		zap.Int64("group_id", groupID),
		zap.String("period", string(period)),
		zap.Time("since", since),
		zap.Int("events", len(events)),
	)

	return &GroupReport{
		GroupID: groupID,
		Period:  period,
		Zone:    s.zone.Name(),
		Since:   since,
		Until:   now,
		People:  Summarize(events, since),
	}, nil
}

// PersonDay reports one person's local day containing day.
func (s *Service) PersonDay(ctx context.Context, groupID, personID int64, day time.Time) (rep *DailyPersonReport, err error) {
	defer s.observe("person_day", time.Now(), &err)

	start := s.zone.StartOfDay(day)
	end := s.zone.NextDay(start)
	events, err := s.events.List(ctx, activity.ListOptions{
		GroupID:  groupID,
		PersonID: &personID,
		Since:    start,
		Until:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", s.zone.LocalDate(start), err)
	}

	daily := BuildDailyPersonReport(events, personID)
	daily.GroupID = groupID
	daily.Date = s.zone.LocalDate(start)
	return &daily, nil
}

// PersonMonth lists one person's absence days in the current local month.
func (s *Service) PersonMonth(ctx context.Context, groupID, personID int64) (rep *MonthlyPersonReport, err error) {
	defer s.observe("person_month", time.Now(), &err)

	start := s.zone.StartOfMonth(s.clock.Now())
	end := s.zone.In(start).AddDate(0, 1, 0)
	events, err := s.events.List(ctx, activity.ListOptions{
		GroupID:  groupID,
		PersonID: &personID,
		Codes:    []activity.Code{activity.Leave, activity.Medical},
		Since:    start,
		Until:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("listing absences for %s: %w", s.zone.In(start).Format("2006-01"), err)
	}

	monthly := BuildMonthlyPersonReport(events, personID, s.zone)
	monthly.GroupID = groupID
	monthly.Month = s.zone.In(start).Format("2006-01")
	return &monthly, nil
}

func (s *Service) observe(kind string, started time.Time, err *error) {
	if s.observer != nil {
		s.observer.ObserveReport(kind, time.Since(started), *err)
	}
}
