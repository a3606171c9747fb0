package prompts

import (
	"slices"
	"strings"
)

// Stage names the model call a prompt is composed for.
type Stage string

const (
	StageClassify Stage = "classify"
	StageAnswer   Stage = "answer"
)

var stages = []Stage{StageClassify, StageAnswer}

// Stages lists every stage with a default prompt.
func Stages() []Stage {
	return slices.Clone(stages)
}

func (s Stage) Valid() bool {
	return slices.Contains(stages, s)
}

// ParseStage accepts a stage name in any case, ignoring surrounding space.
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", ErrInvalidStage
	}
	return s, nil
}

// UnmarshalText lets a Stage decode from JSON strings and config values.
func (s *Stage) UnmarshalText(text []byte) error {
	v, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
