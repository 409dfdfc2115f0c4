package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked     Status = "BOOKED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusArrived    Status = "ARRIVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDNA        Status = "DNA"
)

var allStatuses = []Status{
	StatusBooked, StatusConfirmed, StatusArrived, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusDNA,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// transitions lists the statuses reachable from each state. Terminal states
// have no entry.
var transitions = map[Status][]Status{
	StatusBooked:     {StatusConfirmed, StatusArrived, StatusCancelled, StatusDNA},
	StatusConfirmed:  {StatusArrived, StatusCancelled, StatusDNA},
	StatusArrived:    {StatusInProgress, StatusCompleted, StatusCancelled, StatusDNA},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from may move to to. Re-applying the current
// status is allowed and treated as a no-op by the service.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Reschedulable reports whether an appointment in this status may move.
func (s Status) Reschedulable() bool {
	return s == StatusBooked || s == StatusConfirmed
}

type AppointmentType string

const (
	TypeGPConsultation       AppointmentType = "GP_CONSULTATION"
	TypeExtendedConsultation AppointmentType = "EXTENDED_CONSULTATION"
	TypeTelephone            AppointmentType = "TELEPHONE"
	TypeVideo                AppointmentType = "VIDEO"
	TypeNurseAppointment     AppointmentType = "NURSE_APPOINTMENT"
	TypeHomeVisit            AppointmentType = "HOME_VISIT"
	TypeVaccination          AppointmentType = "VACCINATION"
	TypeReview               AppointmentType = "REVIEW"
)

// defaultMinutes is the slot length used when a booking omits a duration.
var defaultMinutes = map[AppointmentType]int{
	TypeGPConsultation:       10,
	TypeExtendedConsultation: 20,
	TypeTelephone:            10,
	TypeVideo:                15,
	TypeNurseAppointment:     15,
	TypeHomeVisit:            30,
	TypeVaccination:          10,
	TypeReview:               15,
}

const (
	MinDuration = 5
	MaxDuration = 240
)

func (t AppointmentType) Valid() bool {
	_, ok := defaultMinutes[t]
	return ok
}

// DefaultDuration returns the default length in minutes, or 0 for an
// unknown type.
func (t AppointmentType) DefaultDuration() int {
	return defaultMinutes[t]
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Back-to-back intervals do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

type Appointment struct {
	ID                 uuid.UUID       `json:"id"`
	PracticeID         uuid.UUID       `json:"practice_id"`
	PatientID          uuid.UUID       `json:"patient_id"`
	ClinicianID        uuid.UUID       `json:"clinician_id"`
	RoomID             *uuid.UUID      `json:"room_id,omitempty"`
	Type               AppointmentType `json:"appointment_type"`
	ScheduledStart     time.Time       `json:"scheduled_start"`
	ScheduledEnd       time.Time       `json:"scheduled_end"`
	Duration           int             `json:"duration"`
	Status             Status          `json:"status"`
	IsUrgent           bool            `json:"is_urgent"`
	Reason             string          `json:"reason,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	ArrivedAt          *time.Time      `json:"arrived_at,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedBy          string          `json:"created_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Patient   *PatientSummary   `json:"patient,omitempty"`
	Clinician *ClinicianSummary `json:"clinician,omitempty"`
	Room      *RoomSummary      `json:"room,omitempty"`
}

// Display summaries joined onto appointments for list and detail views.
type PatientSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	NHSNumber *string   `json:"nhs_number,omitempty"`
}

type ClinicianSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

type RoomSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// SearchFilter narrows an appointment listing. Date is a YYYY-MM-DD day in
// the practice timezone and is resolved into From/To by the service.
type SearchFilter struct {
	ClinicianID *uuid.UUID
	PatientID   *uuid.UUID
	Statuses    []Status
	From        *time.Time
	To          *time.Time
	Date        string
}

// BusySlot is an interval during which a clinician is booked.
type BusySlot struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Status        Status    `json:"status"`
}

type Availability struct {
	ClinicianID uuid.UUID  `json:"clinician_id"`
	Date        string     `json:"date"`
	Timezone    string     `json:"timezone"`
	Busy        []BusySlot `json:"busy"`
}

// DashboardStats are the front-desk counters. TodayCompleted is derived as
// TodayTotal - TodayPending, so arrived and cancelled appointments count
// towards it.
type DashboardStats struct {
	TodayTotal     int `json:"today_total"`
	TodayPending   int `json:"today_pending"`
	TodayCompleted int `json:"today_completed"`
	MonthMissed    int `json:"month_missed"`
	MonthCancelled int `json:"month_cancelled"`
}
