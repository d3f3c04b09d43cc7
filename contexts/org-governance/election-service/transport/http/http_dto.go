package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateElectionRequest struct {
	OrganizationID      string  `json:"organization_id"`
	ElectionType        string  `json:"election_type"`
	Position            string  `json:"position"`
	SeatsAvailable      int     `json:"seats_available"`
	VoteType            string  `json:"vote_type"`
	FilingStart         string  `json:"filing_start"`
	FilingEnd           string  `json:"filing_end"`
	VotingStart         string  `json:"voting_start"`
	VotingEnd           string  `json:"voting_end"`
	MinStandingToVote   float64 `json:"min_standing_to_vote"`
	MinStandingToRun    float64 `json:"min_standing_to_run"`
	MinTenureToVote     int     `json:"min_tenure_to_vote"`
	MinTenureToRun      int     `json:"min_tenure_to_run"`
	QuorumPercent       float64 `json:"quorum_percent"`
	WinThresholdPercent float64 `json:"win_threshold_percent"`
	AllowRunoff         bool    `json:"allow_runoff"`
	TargetPlayerID      string  `json:"target_player_id,omitempty"`
}

type ElectionResponse struct {
	ElectionID          string  `json:"election_id"`
	OrganizationID      string  `json:"organization_id"`
	ElectionType        string  `json:"election_type"`
	Position            string  `json:"position,omitempty"`
	SeatsAvailable      int     `json:"seats_available"`
	VoteType            string  `json:"vote_type"`
	Status              string  `json:"status"`
	FilingStart         string  `json:"filing_start"`
	FilingEnd           string  `json:"filing_end"`
	VotingStart         string  `json:"voting_start"`
	VotingEnd           string  `json:"voting_end"`
	QuorumPercent       float64 `json:"quorum_percent"`
	WinThresholdPercent float64 `json:"win_threshold_percent"`
	AllowRunoff         bool    `json:"allow_runoff"`
	ParentElectionID    string  `json:"parent_election_id,omitempty"`
	TargetPlayerID      string  `json:"target_player_id,omitempty"`
	CandidateCount      int     `json:"candidate_count"`
	BallotCount         int     `json:"ballot_count"`
	Replayed            bool    `json:"replayed,omitempty"`
}

type ElectionListResponse struct {
	Items []ElectionResponse `json:"items"`
}

type FileCandidacyRequest struct {
	Platform string `json:"platform,omitempty"`
}

type CandidateResponse struct {
	PlayerID     string `json:"player_id"`
	Position     string `json:"position,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Endorsements int    `json:"endorsements"`
	FiledAt      string `json:"filed_at"`
}

type CandidateListResponse struct {
	Items []CandidateResponse `json:"items"`
}

type CastBallotRequest struct {
	Choice   string   `json:"choice,omitempty"`
	Approved []string `json:"approved,omitempty"`
	Ranked   []string `json:"ranked,omitempty"`
	YesNo    string   `json:"yes_no,omitempty"`
}

type BallotResponse struct {
	ElectionID string  `json:"election_id"`
	VoterID    string  `json:"voter_id"`
	CastAt     string  `json:"cast_at"`
	Weight     float64 `json:"weight"`
}

type CandidateCountItem struct {
	PlayerID string  `json:"player_id"`
	Count    float64 `json:"count"`
}

type RankedRoundItem struct {
	Round      int                  `json:"round"`
	Counts     []CandidateCountItem `json:"counts"`
	Eliminated string               `json:"eliminated,omitempty"`
	Exhausted  int                  `json:"exhausted"`
}

type ResultsResponse struct {
	ElectionID         string               `json:"election_id"`
	ComputedAt         string               `json:"computed_at"`
	EligibleCount      int                  `json:"eligible_count"`
	BallotCount        int                  `json:"ballot_count"`
	TurnoutPercent     float64              `json:"turnout_percent"`
	QuorumMet          bool                 `json:"quorum_met"`
	Counts             []CandidateCountItem `json:"counts,omitempty"`
	WinnerIDs          []string             `json:"winner_ids,omitempty"`
	RunoffRequired     bool                 `json:"runoff_required"`
	RunoffCandidateIDs []string             `json:"runoff_candidate_ids,omitempty"`
	TieBroken          bool                 `json:"tie_broken"`
	Yes                float64              `json:"yes,omitempty"`
	No                 float64              `json:"no,omitempty"`
	Abstain            float64              `json:"abstain,omitempty"`
	YesPercent         float64              `json:"yes_percent,omitempty"`
	Passed             bool                 `json:"passed,omitempty"`
	RankedRounds       []RankedRoundItem    `json:"ranked_rounds,omitempty"`
}

type TurnoutResponse struct {
	ElectionID     string  `json:"election_id"`
	Status         string  `json:"status"`
	EligibleCount  int     `json:"eligible_count"`
	BallotCount    int     `json:"ballot_count"`
	TurnoutPercent float64 `json:"turnout_percent"`
	ObservedAt     string  `json:"observed_at"`
}

type CreatePetitionRequest struct {
	OrganizationID      string  `json:"organization_id"`
	TargetPlayerID      string  `json:"target_player_id"`
	Position            string  `json:"position,omitempty"`
	Reason              string  `json:"reason,omitempty"`
	SignaturesRequired  int     `json:"signatures_required"`
	ExpiresAt           string  `json:"expires_at"`
	VotingWindowHours   int     `json:"voting_window_hours,omitempty"`
	QuorumPercent       float64 `json:"quorum_percent"`
	WinThresholdPercent float64 `json:"win_threshold_percent"`
}

type PetitionResponse struct {
	PetitionID         string `json:"petition_id"`
	OrganizationID     string `json:"organization_id"`
	TargetPlayerID     string `json:"target_player_id"`
	Position           string `json:"position,omitempty"`
	Reason             string `json:"reason,omitempty"`
	SignaturesRequired int    `json:"signatures_required"`
	SignatureCount     int    `json:"signature_count"`
	Status             string `json:"status"`
	ExpiresAt          string `json:"expires_at"`
	ElectionID         string `json:"election_id,omitempty"`
}

type PetitionListResponse struct {
	Items []PetitionResponse `json:"items"`
}
