package entities

import "time"

// CandidateCount is one tally line. Counts are weighted; with default weights
// the sum over all lines equals the ballot count.
type CandidateCount struct {
	PlayerID string
	Count    float64
}

// RankedRound records one instant-runoff iteration for audit.
type RankedRound struct {
	Round      int
	Counts     []CandidateCount
	Eliminated string
	Exhausted  int
}

// Results is computed exactly once, when the election leaves counting, and is
// never recomputed afterward.
type Results struct {
	ComputedAt     time.Time
	EligibleCount  int
	BallotCount    int
	TurnoutPercent float64
	QuorumMet      bool

	// Counts is ordered descending by count, ascending candidate ID on equal
	// counts, so re-running a tally is byte-for-byte deterministic.
	Counts    []CandidateCount
	WinnerIDs []string

	RunoffRequired     bool
	RunoffCandidateIDs []string
	// RunoffElectionID links the spawned child election; it is committed with
	// the parent's RUNOFF status so the pair is recoverable after a crash.
	RunoffElectionID string
	TieBroken        bool

	Yes        float64
	No         float64
	Abstain    float64
	YesPercent float64
	Passed     bool

	RankedRounds []RankedRound
}

type PetitionStatus string

const (
	PetitionStatusOpen      PetitionStatus = "open"
	PetitionStatusSucceeded PetitionStatus = "succeeded"
	PetitionStatusExpired   PetitionStatus = "expired"
	PetitionStatusWithdrawn PetitionStatus = "withdrawn"
)

type Signature struct {
	PlayerID string
	SignedAt time.Time
}

// RecallPetition collects signatures against a numeric threshold; crossing it
// spawns a recall election against the incumbent.
type RecallPetition struct {
	PetitionID         string
	OrganizationID     string
	TargetPlayerID     string
	Position           string
	Reason             string
	SignaturesRequired int
	Signatures         []Signature
	Status             PetitionStatus
	ExpiresAt          time.Time

	// Parameters for the spawned recall election.
	VotingWindow        time.Duration
	QuorumPercent       float64
	WinThresholdPercent float64

	// ElectionID is set once the threshold is crossed.
	ElectionID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSigned reports whether the player already signed.
func (p RecallPetition) HasSigned(playerID string) bool {
	for _, signature := range p.Signatures {
		if signature.PlayerID == playerID {
			return true
		}
	}
	return false
}
