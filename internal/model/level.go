package model

import (
	"fmt"
	"strings"
)

// KnowledgeLevel is the content tier a patient is permitted to view for a
// medication.
type KnowledgeLevel string

const (
	LevelBasic        KnowledgeLevel = "basic"
	LevelIntermediate KnowledgeLevel = "intermediate"
	LevelExpert       KnowledgeLevel = "expert"
)

// Rank returns the position of the level in the total order
// basic < intermediate < expert.
func (l KnowledgeLevel) Rank() int {
	switch KnowledgeLevel(strings.ToLower(string(l))) {
	case LevelBasic:
		return 1
	case LevelIntermediate:
		return 2
	case LevelExpert:
		return 3
	}
	return 0
}

func (l KnowledgeLevel) Valid() bool {
	return l.Rank() > 0
}

// Title returns the capitalized form used by drug content section keys.
func (l KnowledgeLevel) Title() string {
	s := strings.ToLower(string(l))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseKnowledgeLevel parses a level name case-insensitively.
func ParseKnowledgeLevel(s string) (KnowledgeLevel, error) {
	l := KnowledgeLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown knowledge level %q", s)
	}
	return l, nil
}

// MaxLevel returns the higher-ranked of two levels.
func MaxLevel(a, b KnowledgeLevel) KnowledgeLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
