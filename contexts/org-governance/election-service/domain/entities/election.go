package entities

import "time"

type ElectionStatus string

const (
	ElectionStatusScheduled ElectionStatus = "scheduled"
	ElectionStatusFiling    ElectionStatus = "filing"
	ElectionStatusVoting    ElectionStatus = "voting"
	ElectionStatusCounting  ElectionStatus = "counting"
	ElectionStatusCompleted ElectionStatus = "completed"
	ElectionStatusRunoff    ElectionStatus = "runoff"
	ElectionStatusCancelled ElectionStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s ElectionStatus) Terminal() bool {
	switch s {
	case ElectionStatusCompleted, ElectionStatusRunoff, ElectionStatusCancelled:
		return true
	default:
		return false
	}
}

type ElectionType string

const (
	ElectionTypeGeneral ElectionType = "general"
	ElectionTypeSpecial ElectionType = "special"
	ElectionTypeRecall  ElectionType = "recall"
)

type VoteType string

const (
	VoteTypeSingle   VoteType = "single"
	VoteTypeApproval VoteType = "approval"
	VoteTypeRanked   VoteType = "ranked"
	VoteTypeYesNo    VoteType = "yes_no"
)

type YesNoChoice string

const (
	ChoiceYes     YesNoChoice = "yes"
	ChoiceNo      YesNoChoice = "no"
	ChoiceAbstain YesNoChoice = "abstain"
)

// Election is the aggregate root: one document carries its candidates,
// ballots, eligibility snapshot and results, so no external joins are needed
// to render an outcome.
type Election struct {
	ElectionID     string
	OrganizationID string
	ElectionType   ElectionType
	Position       string
	SeatsAvailable int
	VoteType       VoteType
	Status         ElectionStatus

	FilingStart time.Time
	FilingEnd   time.Time
	VotingStart time.Time
	VotingEnd   time.Time

	MinStandingToVote float64
	MinStandingToRun  float64
	MinTenureToVote   int
	MinTenureToRun    int

	QuorumPercent       float64
	WinThresholdPercent float64
	AllowRunoff         bool

	Candidates []Candidate
	Ballots    []Ballot
	// EligibleVoterIDs is snapshotted once, when filing closes.
	EligibleVoterIDs []string
	// VotedIDs is the dedupe set; always len(Ballots) == len(VotedIDs).
	VotedIDs []string

	Results *Results

	// ParentElectionID links a runoff back to the election it resolves.
	ParentElectionID string
	// TargetPlayerID is the incumbent under recall for recall elections.
	TargetPlayerID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LiveCandidates returns non-withdrawn candidates in filing order.
func (e Election) LiveCandidates() []Candidate {
	live := make([]Candidate, 0, len(e.Candidates))
	for _, candidate := range e.Candidates {
		if !candidate.Withdrawn {
			live = append(live, candidate)
		}
	}
	return live
}

// LiveCandidateIDs returns the player IDs of non-withdrawn candidates.
func (e Election) LiveCandidateIDs() []string {
	live := e.LiveCandidates()
	ids := make([]string, 0, len(live))
	for _, candidate := range live {
		ids = append(ids, candidate.PlayerID)
	}
	return ids
}

// HasVoted reports whether the voter already appears in the dedupe set.
func (e Election) HasVoted(playerID string) bool {
	for _, id := range e.VotedIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// InSnapshot reports whether the player was captured as eligible when filing
// closed.
func (e Election) InSnapshot(playerID string) bool {
	for _, id := range e.EligibleVoterIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// CandidateByPlayer returns the player's candidacy for the election position,
// withdrawn or not.
func (e Election) CandidateByPlayer(playerID string) (Candidate, bool) {
	for _, candidate := range e.Candidates {
		if candidate.PlayerID == playerID {
			return candidate, true
		}
	}
	return Candidate{}, false
}

type Candidate struct {
	PlayerID     string
	Position     string
	Platform     string
	Endorsements []string
	Withdrawn    bool
	FiledAt      time.Time
	WithdrewAt   *time.Time
}

// Ballot is an append-only, one-shot vote. Exactly one payload variant is
// populated, keyed by the election's VoteType.
type Ballot struct {
	VoterID string
	CastAt  time.Time
	Weight  float64

	Choice   string
	Approved []string
	Ranked   []string
	YesNo    YesNoChoice
}
