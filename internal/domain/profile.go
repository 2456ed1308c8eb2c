package domain

import "time"

// SetupState is the current step of the onboarding dialogue. A profile must
// reach StateComplete before free-text features (reminders, meal
// suggestions) are routed.
type SetupState int

const (
	StateAwaitingLocation SetupState = iota
	StateAwaitingPrefecture
	StateAwaitingTime
	StateAwaitingRoute
	StateAwaitingDeparture
	StateAwaitingArrival
	StateAwaitingLineSelect
	StateAwaitingGarbage
	StateComplete
)

var stateNames = map[SetupState]string{
	StateAwaitingLocation:   "awaiting_location",
	StateAwaitingPrefecture: "awaiting_prefecture",
	StateAwaitingTime:       "awaiting_time",
	StateAwaitingRoute:      "awaiting_route",
	StateAwaitingDeparture:  "awaiting_departure",
	StateAwaitingArrival:    "awaiting_arrival",
	StateAwaitingLineSelect: "awaiting_line_select",
	StateAwaitingGarbage:    "awaiting_garbage",
	StateComplete:           "complete",
}

func (s SetupState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseSetupState maps a stored tag back to a SetupState. Unknown tags fall
// back to StateAwaitingLocation so a corrupted row restarts onboarding
// instead of wedging the user.
func ParseSetupState(tag string) SetupState {
	for s, n := range stateNames {
		if n == tag {
			return s
		}
	}
	return StateAwaitingLocation
}

// Candidate is a transient disambiguation candidate kept in the profile's
// scratch area while a clarification question is pending.
type Candidate struct {
	Name       string  `json:"name"`
	Prefecture string  `json:"prefecture"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// UserProfile is the per-user record the conversation state machine reads
// and mutates. It is owned by the store; handlers receive a copy, mutate it,
// and write it back.
type UserProfile struct {
	UserID     string
	SetupState SetupState

	// Home area, resolved during the location steps.
	Location   string
	Prefecture string
	Lat        float64
	Lon        float64

	// Stored verbatim; the digest currently fires at one fixed time for
	// everyone regardless of this preference.
	NotificationTime string

	DepartureStation string
	ArrivalStation   string
	TrainLine        string // empty when no common line was found

	// Weekday index (0=Sunday..6=Saturday) -> collection category.
	GarbageDays map[int]string

	// Scratch holds pending location candidates, LineChoices pending
	// common-line candidates. Both are cleared once resolved.
	Scratch     []Candidate
	LineChoices []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile returns a fresh profile at the start of onboarding.
func NewProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:      userID,
		SetupState:  StateAwaitingLocation,
		GarbageDays: map[int]string{},
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

// Reminder is a single scheduled push. DueAt is stored in UTC; comparison
// against "now" happens in UTC regardless of the host timezone.
type Reminder struct {
	ID        string
	UserID    string
	DueAt     time.Time
	Task      string
	CreatedAt time.Time
}
