package domain

import (
	"time"

	"github.com/lewtec/boxlabeler/internal/codec/tagged"
)

// TimestampLayout is the layout used for UserID timestamps.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// UserKind tells whether an author is a person or a model.
type UserKind uint8

const (
	UserHuman UserKind = 1 << iota
	UserMachine
)

func (k UserKind) String() string {
	switch k {
	case UserHuman:
		return "HUMAN"
	case UserMachine:
		return "MACHINE"
	default:
		return "UNKNOWN"
	}
}

// UserID identifies who produced or reviewed a bounding box.
type UserID struct {
	Name      string   `json:"name"`
	Kind      UserKind `json:"kind"`
	Timestamp string   `json:"timestamp"`
}

type userIDFields UserID

var (
	// DefaultHuman is used when a person did not supply a name
	DefaultHuman = UserID{Name: "default", Kind: UserHuman, Timestamp: now()}
	// DefaultMachine is used for imported inference results without an explicit author
	DefaultMachine = UserID{Name: "default", Kind: UserMachine, Timestamp: now()}
)

func now() string {
	return time.Now().Format(TimestampLayout)
}

// NewUser returns a UserID stamped with the current time.
func NewUser(name string, kind UserKind) UserID {
	return UserID{Name: name, Kind: kind, Timestamp: now()}
}

// Stamped returns a copy of u with the timestamp set to the current time.
func (u UserID) Stamped() UserID {
	u.Timestamp = now()
	return u
}

func (u UserID) IsZero() bool {
	return u == UserID{}
}

func (UserID) RecordTag() string { return TagUserID }

func (u UserID) MarshalJSON() ([]byte, error) {
	return tagged.Wrap(TagUserID, userIDFields(u))
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	return tagged.Unwrap(data, TagUserID, (*userIDFields)(u))
}
