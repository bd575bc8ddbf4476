// Package roster holds the staff directory used to authorize reviewers.
//
// The directory is read on every review call and replaced wholesale when a
// roster source is refreshed. Readers always see one complete snapshot.
package roster

import (
	"strings"
	"sync/atomic"
	"time"
)

type Level string

const (
	LevelMember    Level = "Member"
	LevelLead      Level = "Lead"
	LevelChief     Level = "Chief"
	LevelDirector  Level = "Director"
	LevelExecutive Level = "Executive"
)

type Entry struct {
	Email  string `json:"email" yaml:"email"`
	Name   string `json:"name" yaml:"name"`
	Branch string `json:"branch" yaml:"branch"`
	Role   string `json:"role" yaml:"role"`
	Level  Level  `json:"level" yaml:"level"`
}

// DisplayName is the note author for this entry.
func (e Entry) DisplayName() string {
	if strings.TrimSpace(e.Name) != "" {
		return e.Name
	}
	return e.Email
}

// Hierarchy lists the role-title keywords that map to each level. Only the
// role title is matched; the branch never raises a member's level.
type Hierarchy struct {
	ExecutiveKeywords []string `mapstructure:"executive_keywords"`
	DirectorKeywords  []string `mapstructure:"director_keywords"`
	ChiefKeywords     []string `mapstructure:"chief_keywords"`
	LeadKeywords      []string `mapstructure:"lead_keywords"`
}

func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		ExecutiveKeywords: []string{"executive"},
		DirectorKeywords:  []string{"director"},
		ChiefKeywords:     []string{"chief"},
		LeadKeywords:      []string{"lead"},
	}
}

func (h Hierarchy) Classify(role string) Level {
	switch {
	case ContainsAny(role, h.ExecutiveKeywords):
		return LevelExecutive
	case ContainsAny(role, h.DirectorKeywords):
		return LevelDirector
	case ContainsAny(role, h.ChiefKeywords):
		return LevelChief
	case ContainsAny(role, h.LeadKeywords):
		return LevelLead
	default:
		return LevelMember
	}
}

// ContainsAny reports whether s contains any keyword, ignoring case.
func ContainsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Snapshot is an immutable view of the roster.
type Snapshot struct {
	entries  map[string]Entry
	Version  uint64
	LoadedAt time.Time
}

func (s *Snapshot) Lookup(email string) (Entry, bool) {
	e, ok := s.entries[NormalizeEmail(email)]
	return e, ok
}

func (s *Snapshot) Len() int { return len(s.entries) }

type Directory struct {
	hierarchy Hierarchy
	current   atomic.Pointer[Snapshot]
}

func NewDirectory(h Hierarchy) *Directory {
	d := &Directory{hierarchy: h}
	d.current.Store(&Snapshot{entries: map[string]Entry{}})
	return d
}

func (d *Directory) Snapshot() *Snapshot { return d.current.Load() }

func (d *Directory) Lookup(email string) (Entry, bool) {
	return d.current.Load().Lookup(email)
}

func (d *Directory) Len() int { return d.current.Load().Len() }

// Replace swaps in a new snapshot built from entries and returns its size.
// Entries without an email are dropped; a repeated email keeps the last row.
func (d *Directory) Replace(entries []Entry) int {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		e.Email = NormalizeEmail(e.Email)
		if e.Email == "" {
			continue
		}
		e.Name = strings.TrimSpace(e.Name)
		e.Branch = strings.TrimSpace(e.Branch)
		e.Role = strings.TrimSpace(e.Role)
		e.Level = d.hierarchy.Classify(e.Role)
		m[e.Email] = e
	}
	for {
		prev := d.current.Load()
		next := &Snapshot{entries: m, Version: prev.Version + 1, LoadedAt: time.Now().UTC()}
		if d.current.CompareAndSwap(prev, next) {
			return len(m)
		}
	}
}
