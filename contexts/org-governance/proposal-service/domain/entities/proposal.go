package entities

import "time"

type ProposalStatus string

const (
	ProposalStatusDraft        ProposalStatus = "draft"
	ProposalStatusSubmitted    ProposalStatus = "submitted"
	ProposalStatusDebate       ProposalStatus = "debate"
	ProposalStatusVoting       ProposalStatus = "voting"
	ProposalStatusPassed       ProposalStatus = "passed"
	ProposalStatusFailed       ProposalStatus = "failed"
	ProposalStatusImplementing ProposalStatus = "implementing"
	ProposalStatusImplemented  ProposalStatus = "implemented"
	ProposalStatusWithdrawn    ProposalStatus = "withdrawn"
	ProposalStatusExpired      ProposalStatus = "expired"
)

// Terminal reports whether no further transition may leave the status.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusImplemented, ProposalStatusFailed, ProposalStatusWithdrawn, ProposalStatusExpired:
		return true
	}
	return false
}

type ProposalCategory string

const (
	CategoryPolicy    ProposalCategory = "policy"
	CategoryBudget    ProposalCategory = "budget"
	CategoryPersonnel ProposalCategory = "personnel"
	CategoryStructure ProposalCategory = "structure"
	CategoryOther     ProposalCategory = "other"
)

type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

type AmendmentStatus string

const (
	AmendmentOpen     AmendmentStatus = "open"
	AmendmentAccepted AmendmentStatus = "accepted"
	AmendmentRejected AmendmentStatus = "rejected"
)

// Proposal is the aggregate root for one formal motion: sponsorship, debate,
// the vote itself, amendments and comments raised along the way, and the
// implementation checklist after passage.
type Proposal struct {
	ProposalID     string
	OrganizationID string
	AuthorID       string
	Title          string
	Body           string
	Category       ProposalCategory
	Status         ProposalStatus

	Sponsors            []string
	MinSponsorsRequired int

	DebateStart time.Time
	DebateEnd   time.Time
	VotingEnd   time.Time
	ExpiresAt   time.Time

	QuorumPercent        float64
	PassThresholdPercent float64

	EligibleVoterIDs []string
	Votes            []Vote
	VotedIDs         []string
	Tally            Tally

	Amendments          []Amendment
	Comments            []Comment
	ImplementationSteps []ImplementationStep

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Proposal) HasSponsor(playerID string) bool {
	for _, sponsor := range p.Sponsors {
		if sponsor == playerID {
			return true
		}
	}
	return false
}

func (p Proposal) HasVoted(playerID string) bool {
	for _, voterID := range p.VotedIDs {
		if voterID == playerID {
			return true
		}
	}
	return false
}

func (p Proposal) InSnapshot(playerID string) bool {
	for _, id := range p.EligibleVoterIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

func (p Proposal) AmendmentByID(amendmentID string) (int, bool) {
	for i, amendment := range p.Amendments {
		if amendment.AmendmentID == amendmentID {
			return i, true
		}
	}
	return 0, false
}

func (p Proposal) CommentByID(commentID string) (Comment, bool) {
	for _, comment := range p.Comments {
		if comment.CommentID == commentID {
			return comment, true
		}
	}
	return Comment{}, false
}

func (p Proposal) StepByID(stepID string) (int, bool) {
	for i, step := range p.ImplementationSteps {
		if step.StepID == stepID {
			return i, true
		}
	}
	return 0, false
}

// AllStepsCompleted is the IMPLEMENTING exit condition; an empty checklist
// never completes on its own.
func (p Proposal) AllStepsCompleted() bool {
	if len(p.ImplementationSteps) == 0 {
		return false
	}
	for _, step := range p.ImplementationSteps {
		if !step.Completed {
			return false
		}
	}
	return true
}

// Vote is one yes/no/abstain ballot on the proposal itself.
type Vote struct {
	VoterID string
	Choice  VoteChoice
	Weight  float64
	CastAt  time.Time
}

// Tally is computed exactly once when the proposal leaves voting; Tallied
// guards against recomputation.
type Tally struct {
	Tallied        bool
	ComputedAt     time.Time
	EligibleCount  int
	BallotCount    int
	TurnoutPercent float64
	QuorumMet      bool
	Yes            float64
	No             float64
	Abstain        float64
	YesPercent     float64
	Passed         bool
}

// Amendment is an independently votable modification riding on the proposal.
// Its simple for/against majority is decided when the proposal leaves voting.
type Amendment struct {
	AmendmentID  string
	AuthorID     string
	Text         string
	VotesFor     int
	VotesAgainst int
	VoterIDs     []string
	Status       AmendmentStatus
	ProposedAt   time.Time
}

func (a Amendment) HasVoted(playerID string) bool {
	for _, voterID := range a.VoterIDs {
		if voterID == playerID {
			return true
		}
	}
	return false
}

// Comment is threaded discussion, not voting.
type Comment struct {
	CommentID       string
	ParentCommentID string
	AuthorID        string
	Body            string
	PostedAt        time.Time
}

// ImplementationStep is one entry of the post-passage checklist.
type ImplementationStep struct {
	StepID      string
	Description string
	AssigneeID  string
	Completed   bool
	CompletedAt *time.Time
}
