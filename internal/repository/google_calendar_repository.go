package repository

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

const (
	sessionColorID       = "7"
	popupReminderMinutes = 30
	emailReminderMinutes = 24 * 60
)

// GoogleCalendarRepository reads and writes the user's Google Calendar.
type GoogleCalendarRepository struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleCalendarRepository wraps svc for calendarID. All-day events are
// interpreted in loc.
func NewGoogleCalendarRepository(svc *calendar.Service, calendarID string, loc *time.Location) *GoogleCalendarRepository {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleCalendarRepository{svc: svc, calendarID: calendarID, loc: loc}
}

// ListEvents returns single events starting in [from, to) ordered by start.
func (r *GoogleCalendarRepository) ListEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]models.CalendarItem, error) {
	call := r.svc.Events.List(r.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	events, err := call.Do()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrCalendarUnavailable, "list calendar events")
	}

	items := make([]models.CalendarItem, 0, len(events.Items))
	for _, e := range events.Items {
		start, allDay, err := r.parseEventTime(e.Start)
		if err != nil {
			continue
		}
		item := models.CalendarItem{
			ID:          e.Id,
			Summary:     e.Summary,
			Description: e.Description,
			Start:       start,
			AllDay:      allDay,
		}
		if end, _, err := r.parseEventTime(e.End); err == nil {
			item.End = &end
		}
		items = append(items, item)
	}
	return items, nil
}

// QueryBusy returns the busy periods of the calendar within [timeMin, timeMax).
func (r *GoogleCalendarRepository) QueryBusy(ctx context.Context, timeMin, timeMax time.Time) ([]models.BusyInterval, error) {
	resp, err := r.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin:  timeMin.Format(time.RFC3339),
		TimeMax:  timeMax.Format(time.RFC3339),
		TimeZone: r.loc.String(),
		Items:    []*calendar.FreeBusyRequestItem{{Id: r.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrCalendarUnavailable, "query busy intervals")
	}

	cal, ok := resp.Calendars[r.calendarID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCalendarUnavailable, fmt.Sprintf("calendar %s missing from free/busy response", r.calendarID))
	}
	if len(cal.Errors) > 0 {
		return nil, appErrors.Clone(appErrors.ErrCalendarUnavailable, fmt.Sprintf("free/busy error for %s: %s", r.calendarID, cal.Errors[0].Reason))
	}

	busy := make([]models.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrCalendarUnavailable, "parse busy start")
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrCalendarUnavailable, "parse busy end")
		}
		busy = append(busy, models.BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// InsertSessionEvent creates a calendar entry for a study session and returns
// its event id.
func (r *GoogleCalendarRepository) InsertSessionEvent(ctx context.Context, evt models.SessionEvent) (string, error) {
	tz := evt.TimeZone
	if tz == "" {
		tz = r.loc.String()
	}
	created, err := r.svc.Events.Insert(r.calendarID, &calendar.Event{
		Summary:     evt.Summary,
		Description: evt.Description,
		Start:       &calendar.EventDateTime{DateTime: evt.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: evt.End.Format(time.RFC3339), TimeZone: tz},
		ColorId:     sessionColorID,
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: popupReminderMinutes},
				{Method: "email", Minutes: emailReminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrCalendarUnavailable, "insert calendar event")
	}
	return created.Id, nil
}

func (r *GoogleCalendarRepository) parseEventTime(t *calendar.EventDateTime) (time.Time, bool, error) {
	if t == nil {
		return time.Time{}, false, fmt.Errorf("event time missing")
	}
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		return parsed, false, err
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, r.loc)
		return parsed, true, err
	}
	return time.Time{}, false, fmt.Errorf("event time empty")
}
