package model

import (
	"strings"
	"time"
)

// DefaultLeaseDuration is how long a claim stays exclusive without a decision.
const DefaultLeaseDuration = 2 * time.Hour

type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusAccept      Status = "accept"
	StatusReject      Status = "reject"
	StatusWaitlist    Status = "waitlist"
)

func (s Status) Terminal() bool {
	return s == StatusAccept || s == StatusReject || s == StatusWaitlist
}

type Decision string

const (
	DecisionAccept   Decision = "accept"
	DecisionReject   Decision = "reject"
	DecisionWaitlist Decision = "waitlist"
)

var decisionAliases = map[string]Decision{
	"accept":     DecisionAccept,
	"accepted":   DecisionAccept,
	"reject":     DecisionReject,
	"rejected":   DecisionReject,
	"waitlist":   DecisionWaitlist,
	"waitlisted": DecisionWaitlist,
}

// ParseDecision normalizes a reviewer supplied outcome. The second value is
// false when the input is not one of the accepted outcomes.
func ParseDecision(s string) (Decision, bool) {
	d, ok := decisionAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

func (d Decision) Status() Status { return Status(d) }

// Tag is the prefix written in front of decision notes.
func (d Decision) Tag() string {
	return "[Decision: " + strings.ToUpper(string(d)) + "]"
}

type Claim struct {
	Claimant  string    `json:"claimant"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type Note struct {
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type DecisionEvent struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	ReviewerEmail string    `json:"reviewer_email"`
	Decision      Decision  `json:"decision"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

type Application struct {
	ID             string            `json:"id"`
	ApplicantEmail string            `json:"applicant_email"`
	ApplicantName  string            `json:"applicant_name,omitempty"`
	Role           string            `json:"role"`
	Branch         string            `json:"branch"`
	Status         Status            `json:"status"`
	Claim          *Claim            `json:"claim,omitempty"`
	Responses      map[string]string `json:"responses,omitempty"`
	Notes          []Note            `json:"notes,omitempty"`
	History        []DecisionEvent   `json:"history,omitempty"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}

type Submission struct {
	ApplicantEmail string            `json:"applicant_email"`
	ApplicantName  string            `json:"applicant_name"`
	Role           string            `json:"role"`
	Branch         string            `json:"branch"`
	Responses      map[string]string `json:"responses"`
}

// ApplicationFilter selects applications from the store. Zero fields do not
// constrain the result.
type ApplicationFilter struct {
	Branch         string
	ApplicantEmail string
	Statuses       []Status
	// ClaimableBy keeps records whose claim is absent, stale (claimed at or
	// before StaleBefore) or held by this reviewer.
	ClaimableBy string
	StaleBefore time.Time
}

// ClaimExpectation is the precondition of a conditional update: the record's
// claim must be absent, held by Holder, or (when StaleBefore is set) taken
// at or before StaleBefore.
type ClaimExpectation struct {
	Holder      string
	StaleBefore time.Time
	// RequireHeld demands an existing claim by Holder.
	RequireHeld bool
	// Statuses, when set, lists the record statuses the update may apply to.
	Statuses []Status
}

// Satisfied evaluates the expectation against a claim read under lock.
func (e ClaimExpectation) Satisfied(c *Claim) bool {
	if c == nil {
		return !e.RequireHeld
	}
	if strings.EqualFold(c.Claimant, e.Holder) {
		return true
	}
	if e.RequireHeld {
		return false
	}
	return !e.StaleBefore.IsZero() && !c.ClaimedAt.After(e.StaleBefore)
}

// AllowsStatus reports whether the update may apply to a record in status s.
func (e ClaimExpectation) AllowsStatus(s Status) bool {
	if len(e.Statuses) == 0 {
		return true
	}
	for _, st := range e.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

type ApplicationPatch struct {
	Status     Status
	Claim      *Claim
	ClearClaim bool
}

type NoteReport struct {
	ApplicationID  string    `json:"application_id"`
	ApplicantEmail string    `json:"applicant_email"`
	ApplicantName  string    `json:"applicant_name,omitempty"`
	Role           string    `json:"role"`
	Author         string    `json:"author"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// StatusCount is the number of applications of one role in one status.
type StatusCount struct {
	Role   string
	Status Status
	Count  int
}

type BranchSummary struct {
	Branch   string         `json:"branch"`
	Total    int            `json:"total"`
	Reviewed int            `json:"reviewed"`
	ByStatus map[Status]int `json:"by_status"`
}

type ReviewerStats struct {
	ReviewerEmail string           `json:"reviewer_email"`
	Total         int              `json:"total"`
	ByDecision    map[Decision]int `json:"by_decision"`
}

type AppError string

func (e AppError) Error() string { return string(e) }

const (
	ErrNotFound = AppError("NOT_FOUND")
)
