package domain

import "strings"

// ReviewState is a set of independent review flags.
type ReviewState uint8

const (
	// StateReviewed means the box has been inspected
	StateReviewed ReviewState = 1 << iota
	// StateCorrect means the reviewer considers the box accurate
	StateCorrect
	// StateNew means the box was drawn by the current reviewer
	StateNew
)

// Has reports whether every flag in f is set.
func (s ReviewState) Has(f ReviewState) bool {
	return s&f == f
}

func (s ReviewState) With(f ReviewState) ReviewState {
	return s | f
}

func (s ReviewState) Without(f ReviewState) ReviewState {
	return s &^ f
}

func (s ReviewState) String() string {
	if s == 0 {
		return "NONE"
	}
	var parts []string
	for _, flag := range []struct {
		f    ReviewState
		name string
	}{{StateReviewed, "REVIEWED"}, {StateCorrect, "CORRECT"}, {StateNew, "NEW"}} {
		if s.Has(flag.f) {
			parts = append(parts, flag.name)
		}
	}
	return strings.Join(parts, "|")
}

// MachineLearningMode selects which arrays a binary record carries.
type MachineLearningMode uint8

const (
	ModeTraining MachineLearningMode = 1 << iota
	ModeTesting
	ModeInference
)

func (m MachineLearningMode) String() string {
	switch {
	case m&ModeInference != 0:
		return "inference"
	case m&ModeTraining != 0:
		return "training"
	case m&ModeTesting != 0:
		return "testing"
	default:
		return "none"
	}
}

// ParseMode maps a mode name to its flag.
func ParseMode(name string) (MachineLearningMode, bool) {
	switch strings.ToLower(name) {
	case "training", "train":
		return ModeTraining, true
	case "testing", "test":
		return ModeTesting, true
	case "inference", "infer":
		return ModeInference, true
	}
	return 0, false
}
