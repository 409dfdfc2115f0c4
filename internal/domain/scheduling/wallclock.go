package scheduling

import (
	"encoding/json"
	"time"

	"github.com/gpcare/practice/internal/platform/apperr"
)

var errStartFormat = apperr.Invalid(
	"scheduled_start must be RFC 3339 (2026-03-01T09:00:00Z) or practice-local time (2026-03-01T09:00)")

// Zone-less layouts accepted for scheduled_start. They are read in the
// practice timezone.
var wallClockLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

type wallClock struct {
	t     time.Time
	local bool
}

func (w *wallClock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errStartFormat
	}
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		w.t = t
		return nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			w.t, w.local = t, true
			return nil
		}
	}
	return errStartFormat
}

// in pins a zone-less value to loc. Values that carried an offset are
// returned unchanged.
func (w wallClock) in(loc *time.Location) time.Time {
	if !w.local {
		return w.t
	}
	t := w.t
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func (r *CreateRequest) UnmarshalJSON(b []byte) error {
	type plain CreateRequest
	aux := struct {
		*plain
		ScheduledStart wallClock `json:"scheduled_start"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ScheduledStart, r.localStart = aux.ScheduledStart.t, aux.ScheduledStart.local
	return nil
}

func (r *RescheduleRequest) UnmarshalJSON(b []byte) error {
	type plain RescheduleRequest
	aux := struct {
		*plain
		ScheduledStart wallClock `json:"scheduled_start"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ScheduledStart, r.localStart = aux.ScheduledStart.t, aux.ScheduledStart.local
	return nil
}
