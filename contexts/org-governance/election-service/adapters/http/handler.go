package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"simgov/contexts/org-governance/election-service/application/commands"
	"simgov/contexts/org-governance/election-service/application/queries"
	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	httptransport "simgov/contexts/org-governance/election-service/transport/http"
)

type Handler struct {
	Elections commands.ElectionUseCase
	Petitions commands.PetitionUseCase
	Queries   queries.ElectionQueryUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateElectionHandler(
	ctx context.Context,
	officerID string,
	idempotencyKey string,
	req httptransport.CreateElectionRequest,
) (httptransport.ElectionResponse, error) {
	filingStart, err := parseTimestamp(req.FilingStart)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	filingEnd, err := parseTimestamp(req.FilingEnd)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	votingStart, err := parseTimestamp(req.VotingStart)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	votingEnd, err := parseTimestamp(req.VotingEnd)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}

	result, err := h.Elections.CreateElection(ctx, commands.CreateElectionCommand{
		OfficerID:           officerID,
		IdempotencyKey:      idempotencyKey,
		OrganizationID:      req.OrganizationID,
		ElectionType:        entities.ElectionType(req.ElectionType),
		Position:            req.Position,
		SeatsAvailable:      req.SeatsAvailable,
		VoteType:            entities.VoteType(req.VoteType),
		FilingStart:         filingStart,
		FilingEnd:           filingEnd,
		VotingStart:         votingStart,
		VotingEnd:           votingEnd,
		MinStandingToVote:   req.MinStandingToVote,
		MinStandingToRun:    req.MinStandingToRun,
		MinTenureToVote:     req.MinTenureToVote,
		MinTenureToRun:      req.MinTenureToRun,
		QuorumPercent:       req.QuorumPercent,
		WinThresholdPercent: req.WinThresholdPercent,
		AllowRunoff:         req.AllowRunoff,
		TargetPlayerID:      req.TargetPlayerID,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	response := electionResponse(result.Election)
	response.Replayed = result.Replayed
	return response, nil
}

func (h Handler) GetElectionHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Queries.Election(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election), nil
}

func (h Handler) ListElectionsHandler(ctx context.Context, organizationID string) (httptransport.ElectionListResponse, error) {
	elections, err := h.Queries.OrganizationElections(ctx, organizationID)
	if err != nil {
		return httptransport.ElectionListResponse{}, err
	}
	items := make([]httptransport.ElectionResponse, 0, len(elections))
	for _, election := range elections {
		items = append(items, electionResponse(election))
	}
	return httptransport.ElectionListResponse{Items: items}, nil
}

func (h Handler) CancelElectionHandler(ctx context.Context, electionID string, officerID string) error {
	return h.Elections.CancelElection(ctx, electionID, officerID)
}

func (h Handler) FileCandidacyHandler(
	ctx context.Context,
	electionID string,
	playerID string,
	req httptransport.FileCandidacyRequest,
) (httptransport.CandidateResponse, error) {
	candidate, err := h.Elections.FileCandidacy(ctx, commands.FileCandidacyCommand{
		ElectionID: electionID,
		PlayerID:   playerID,
		Platform:   req.Platform,
	})
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return candidateResponse(candidate), nil
}

func (h Handler) WithdrawCandidacyHandler(ctx context.Context, electionID string, playerID string) error {
	return h.Elections.WithdrawCandidacy(ctx, electionID, playerID)
}

func (h Handler) EndorseCandidateHandler(ctx context.Context, electionID string, candidateID string, playerID string) error {
	return h.Elections.Endorse(ctx, electionID, candidateID, playerID)
}

func (h Handler) ListCandidatesHandler(ctx context.Context, electionID string) (httptransport.CandidateListResponse, error) {
	candidates, err := h.Queries.Candidates(ctx, electionID)
	if err != nil {
		return httptransport.CandidateListResponse{}, err
	}
	items := make([]httptransport.CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, candidateResponse(candidate))
	}
	return httptransport.CandidateListResponse{Items: items}, nil
}

func (h Handler) CastBallotHandler(
	ctx context.Context,
	electionID string,
	voterID string,
	req httptransport.CastBallotRequest,
) (httptransport.BallotResponse, error) {
	ballot, err := h.Elections.CastVote(ctx, commands.CastVoteCommand{
		ElectionID: electionID,
		VoterID:    voterID,
		Choice:     req.Choice,
		Approved:   req.Approved,
		Ranked:     req.Ranked,
		YesNo:      entities.YesNoChoice(req.YesNo),
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{
		ElectionID: electionID,
		VoterID:    ballot.VoterID,
		CastAt:     ballot.CastAt.Format(time.RFC3339),
		Weight:     ballot.Weight,
	}, nil
}

func (h Handler) ResultsHandler(ctx context.Context, electionID string) (httptransport.ResultsResponse, error) {
	results, err := h.Queries.Results(ctx, electionID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return resultsResponse(electionID, results), nil
}

func (h Handler) TurnoutHandler(ctx context.Context, electionID string) (httptransport.TurnoutResponse, error) {
	turnout, err := h.Queries.Turnout(ctx, electionID)
	if err != nil {
		return httptransport.TurnoutResponse{}, err
	}
	return httptransport.TurnoutResponse{
		ElectionID:     turnout.ElectionID,
		Status:         string(turnout.Status),
		EligibleCount:  turnout.EligibleCount,
		BallotCount:    turnout.BallotCount,
		TurnoutPercent: turnout.TurnoutPercent,
		ObservedAt:     turnout.ObservedAt.Format(time.RFC3339),
	}, nil
}

func (h Handler) CreatePetitionHandler(
	ctx context.Context,
	initiatorID string,
	req httptransport.CreatePetitionRequest,
) (httptransport.PetitionResponse, error) {
	expiresAt, err := parseTimestamp(req.ExpiresAt)
	if err != nil {
		return httptransport.PetitionResponse{}, err
	}
	petition, err := h.Petitions.CreatePetition(ctx, commands.CreatePetitionCommand{
		InitiatorID:         initiatorID,
		OrganizationID:      req.OrganizationID,
		TargetPlayerID:      req.TargetPlayerID,
		Position:            req.Position,
		Reason:              req.Reason,
		SignaturesRequired:  req.SignaturesRequired,
		ExpiresAt:           expiresAt,
		VotingWindow:        time.Duration(req.VotingWindowHours) * time.Hour,
		QuorumPercent:       req.QuorumPercent,
		WinThresholdPercent: req.WinThresholdPercent,
	})
	if err != nil {
		return httptransport.PetitionResponse{}, err
	}
	return petitionResponse(petition), nil
}

func (h Handler) SignPetitionHandler(ctx context.Context, petitionID string, playerID string) (httptransport.PetitionResponse, error) {
	result, err := h.Petitions.SignPetition(ctx, petitionID, playerID)
	if err != nil {
		return httptransport.PetitionResponse{}, err
	}
	return petitionResponse(result.Petition), nil
}

func (h Handler) WithdrawPetitionHandler(ctx context.Context, petitionID string) error {
	return h.Petitions.WithdrawPetition(ctx, petitionID)
}

func (h Handler) GetPetitionHandler(ctx context.Context, petitionID string) (httptransport.PetitionResponse, error) {
	petition, err := h.Queries.Petition(ctx, petitionID)
	if err != nil {
		return httptransport.PetitionResponse{}, err
	}
	return petitionResponse(petition), nil
}

func (h Handler) ListPetitionsHandler(ctx context.Context, organizationID string) (httptransport.PetitionListResponse, error) {
	petitions, err := h.Queries.OpenPetitions(ctx, organizationID)
	if err != nil {
		return httptransport.PetitionListResponse{}, err
	}
	items := make([]httptransport.PetitionResponse, 0, len(petitions))
	for _, petition := range petitions {
		items = append(items, petitionResponse(petition))
	}
	return httptransport.PetitionListResponse{Items: items}, nil
}

func electionResponse(election entities.Election) httptransport.ElectionResponse {
	return httptransport.ElectionResponse{
		ElectionID:          election.ElectionID,
		OrganizationID:      election.OrganizationID,
		ElectionType:        string(election.ElectionType),
		Position:            election.Position,
		SeatsAvailable:      election.SeatsAvailable,
		VoteType:            string(election.VoteType),
		Status:              string(election.Status),
		FilingStart:         election.FilingStart.Format(time.RFC3339),
		FilingEnd:           election.FilingEnd.Format(time.RFC3339),
		VotingStart:         election.VotingStart.Format(time.RFC3339),
		VotingEnd:           election.VotingEnd.Format(time.RFC3339),
		QuorumPercent:       election.QuorumPercent,
		WinThresholdPercent: election.WinThresholdPercent,
		AllowRunoff:         election.AllowRunoff,
		ParentElectionID:    election.ParentElectionID,
		TargetPlayerID:      election.TargetPlayerID,
		CandidateCount:      len(election.LiveCandidates()),
		BallotCount:         len(election.Ballots),
	}
}

func candidateResponse(candidate entities.Candidate) httptransport.CandidateResponse {
	return httptransport.CandidateResponse{
		PlayerID:     candidate.PlayerID,
		Position:     candidate.Position,
		Platform:     candidate.Platform,
		Endorsements: len(candidate.Endorsements),
		FiledAt:      candidate.FiledAt.Format(time.RFC3339),
	}
}

func resultsResponse(electionID string, results entities.Results) httptransport.ResultsResponse {
	counts := make([]httptransport.CandidateCountItem, 0, len(results.Counts))
	for _, count := range results.Counts {
		counts = append(counts, httptransport.CandidateCountItem{
			PlayerID: count.PlayerID,
			Count:    count.Count,
		})
	}
	rounds := make([]httptransport.RankedRoundItem, 0, len(results.RankedRounds))
	for _, round := range results.RankedRounds {
		roundCounts := make([]httptransport.CandidateCountItem, 0, len(round.Counts))
		for _, count := range round.Counts {
			roundCounts = append(roundCounts, httptransport.CandidateCountItem{
				PlayerID: count.PlayerID,
				Count:    count.Count,
			})
		}
		rounds = append(rounds, httptransport.RankedRoundItem{
			Round:      round.Round,
			Counts:     roundCounts,
			Eliminated: round.Eliminated,
			Exhausted:  round.Exhausted,
		})
	}
	return httptransport.ResultsResponse{
		ElectionID:         electionID,
		ComputedAt:         results.ComputedAt.Format(time.RFC3339),
		EligibleCount:      results.EligibleCount,
		BallotCount:        results.BallotCount,
		TurnoutPercent:     results.TurnoutPercent,
		QuorumMet:          results.QuorumMet,
		Counts:             counts,
		WinnerIDs:          results.WinnerIDs,
		RunoffRequired:     results.RunoffRequired,
		RunoffCandidateIDs: results.RunoffCandidateIDs,
		TieBroken:          results.TieBroken,
		Yes:                results.Yes,
		No:                 results.No,
		Abstain:            results.Abstain,
		YesPercent:         results.YesPercent,
		Passed:             results.Passed,
		RankedRounds:       rounds,
	}
}

func petitionResponse(petition entities.RecallPetition) httptransport.PetitionResponse {
	return httptransport.PetitionResponse{
		PetitionID:         petition.PetitionID,
		OrganizationID:     petition.OrganizationID,
		TargetPlayerID:     petition.TargetPlayerID,
		Position:           petition.Position,
		Reason:             petition.Reason,
		SignaturesRequired: petition.SignaturesRequired,
		SignatureCount:     len(petition.Signatures),
		Status:             string(petition.Status),
		ExpiresAt:          petition.ExpiresAt.Format(time.RFC3339),
		ElectionID:         petition.ElectionID,
	}
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domainerrors.ErrInvalidElectionSpec
	}
	return parsed.UTC(), nil
}
