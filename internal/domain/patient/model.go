package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. DateOfBirth is a calendar date
// (YYYY-MM-DD).
type Patient struct {
	ID          uuid.UUID `json:"id"`
	PracticeID  uuid.UUID `json:"practice_id"`
	NHSNumber   *string   `json:"nhs_number,omitempty"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      *string   `json:"gender,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows a patient listing. Query matches names or NHS number.
type Filter struct {
	Query  string
	Active *bool
}

var genders = []interface{}{"male", "female", "other", "unknown"}

// ValidNHSNumber applies the modulus 11 check to a 10 digit NHS number.
// Spaces are ignored.
func ValidNHSNumber(s string) bool {
	digits := make([]int, 0, 10)
	for _, r := range s {
		switch {
		case r == ' ':
			continue
		case r < '0' || r > '9':
			return false
		}
		digits = append(digits, int(r-'0'))
	}
	if len(digits) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += digits[i] * (10 - i)
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	return check != 10 && check == digits[9]
}

// NormalizeNHSNumber strips spaces so numbers are stored in one form.
func NormalizeNHSNumber(s string) string {
	out := make([]rune, 0, 10)
	for _, r := range s {
		if r != ' ' {
			out = append(out, r)
		}
	}
	return string(out)
}
