// Package policy decides which applications a reviewer may see.
package policy

import (
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
)

// Rules holds the role keywords used to filter applications inside a branch.
type Rules struct {
	// DirectorRoleKeywords are the target roles a Director reviews.
	DirectorRoleKeywords []string `mapstructure:"director_role_keywords"`
	// ChiefHiddenRoleKeywords are the target roles a Chief may not review.
	ChiefHiddenRoleKeywords []string `mapstructure:"chief_hidden_role_keywords"`
}

func DefaultRules() Rules {
	return Rules{
		DirectorRoleKeywords:    []string{"chief", "lead", "head"},
		ChiefHiddenRoleKeywords: []string{"chief", "director"},
	}
}

// CanView reports whether reviewer may open the queue of branch. A nil
// reviewer is someone missing from the roster and sees nothing.
func (r Rules) CanView(reviewer *roster.Entry, branch string) bool {
	if reviewer == nil {
		return false
	}
	if reviewer.Level == roster.LevelExecutive {
		return true
	}
	b := strings.TrimSpace(branch)
	return b != "" && strings.EqualFold(strings.TrimSpace(reviewer.Branch), b)
}

// IsVisibleApplication applies the branch rule and then the level based
// role filter to a single application.
func (r Rules) IsVisibleApplication(reviewer *roster.Entry, app model.Application) bool {
	if !r.CanView(reviewer, app.Branch) {
		return false
	}
	switch reviewer.Level {
	case roster.LevelExecutive:
		return true
	case roster.LevelDirector:
		return roster.ContainsAny(app.Role, r.DirectorRoleKeywords)
	case roster.LevelChief:
		return !roster.ContainsAny(app.Role, r.ChiefHiddenRoleKeywords)
	default:
		return true
	}
}

// Filter keeps the applications reviewer may see, preserving order.
func (r Rules) Filter(reviewer *roster.Entry, apps []model.Application) []model.Application {
	out := make([]model.Application, 0, len(apps))
	for _, a := range apps {
		if r.IsVisibleApplication(reviewer, a) {
			out = append(out, a)
		}
	}
	return out
}
