package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateProposalRequest struct {
	OrganizationID       string  `json:"organization_id"`
	Title                string  `json:"title"`
	Body                 string  `json:"body,omitempty"`
	Category             string  `json:"category"`
	MinSponsorsRequired  int     `json:"min_sponsors_required"`
	DebateStart          string  `json:"debate_start"`
	DebateEnd            string  `json:"debate_end"`
	VotingEnd            string  `json:"voting_end"`
	ExpiresAt            string  `json:"expires_at"`
	QuorumPercent        float64 `json:"quorum_percent"`
	PassThresholdPercent float64 `json:"pass_threshold_percent"`
}

type ProposalResponse struct {
	ProposalID           string  `json:"proposal_id"`
	OrganizationID       string  `json:"organization_id"`
	AuthorID             string  `json:"author_id"`
	Title                string  `json:"title"`
	Body                 string  `json:"body,omitempty"`
	Category             string  `json:"category"`
	Status               string  `json:"status"`
	SponsorCount         int     `json:"sponsor_count"`
	MinSponsorsRequired  int     `json:"min_sponsors_required"`
	DebateStart          string  `json:"debate_start"`
	DebateEnd            string  `json:"debate_end"`
	VotingEnd            string  `json:"voting_end"`
	ExpiresAt            string  `json:"expires_at"`
	QuorumPercent        float64 `json:"quorum_percent"`
	PassThresholdPercent float64 `json:"pass_threshold_percent"`
	VoteCount            int     `json:"vote_count"`
	AmendmentCount       int     `json:"amendment_count"`
	CommentCount         int     `json:"comment_count"`
	Replayed             bool    `json:"replayed,omitempty"`
}

type ProposalListResponse struct {
	Items []ProposalResponse `json:"items"`
}

type CastProposalVoteRequest struct {
	Choice string `json:"choice"`
}

type ProposalVoteResponse struct {
	ProposalID string  `json:"proposal_id"`
	VoterID    string  `json:"voter_id"`
	Choice     string  `json:"choice"`
	Weight     float64 `json:"weight"`
	CastAt     string  `json:"cast_at"`
}

type ProposeAmendmentRequest struct {
	Text string `json:"text"`
}

type AmendmentResponse struct {
	AmendmentID  string `json:"amendment_id"`
	AuthorID     string `json:"author_id"`
	Text         string `json:"text"`
	VotesFor     int    `json:"votes_for"`
	VotesAgainst int    `json:"votes_against"`
	Status       string `json:"status"`
	ProposedAt   string `json:"proposed_at"`
}

type CastAmendmentVoteRequest struct {
	InFavor bool `json:"in_favor"`
}

type PostCommentRequest struct {
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	Body            string `json:"body"`
}

type CommentResponse struct {
	CommentID       string `json:"comment_id"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	AuthorID        string `json:"author_id"`
	Body            string `json:"body"`
	PostedAt        string `json:"posted_at"`
}

type AddImplementationStepRequest struct {
	Description string `json:"description"`
	AssigneeID  string `json:"assignee_id,omitempty"`
}

type ImplementationStepResponse struct {
	StepID      string `json:"step_id"`
	Description string `json:"description"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type TallyResponse struct {
	ProposalID     string  `json:"proposal_id"`
	ComputedAt     string  `json:"computed_at"`
	EligibleCount  int     `json:"eligible_count"`
	BallotCount    int     `json:"ballot_count"`
	TurnoutPercent float64 `json:"turnout_percent"`
	QuorumMet      bool    `json:"quorum_met"`
	Yes            float64 `json:"yes"`
	No             float64 `json:"no"`
	Abstain        float64 `json:"abstain"`
	YesPercent     float64 `json:"yes_percent"`
	Passed         bool    `json:"passed"`
}
