package queries

import (
	"context"
	"sort"
	"strings"
	"time"

	"simgov/contexts/org-governance/election-service/domain/entities"
	domainerrors "simgov/contexts/org-governance/election-service/domain/errors"
	"simgov/contexts/org-governance/election-service/ports"
)

type ElectionQueryUseCase struct {
	Elections ports.ElectionRepository
	Petitions ports.PetitionRepository
	Clock     ports.Clock
}

func (uc ElectionQueryUseCase) Election(ctx context.Context, electionID string) (entities.Election, error) {
	return uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
}

func (uc ElectionQueryUseCase) OrganizationElections(ctx context.Context, organizationID string) ([]entities.Election, error) {
	elections, err := uc.Elections.ListElectionsByOrganization(ctx, strings.TrimSpace(organizationID))
	if err != nil {
		return nil, err
	}
	sort.Slice(elections, func(i, j int) bool {
		if elections[i].CreatedAt.Equal(elections[j].CreatedAt) {
			return elections[i].ElectionID < elections[j].ElectionID
		}
		return elections[i].CreatedAt.Before(elections[j].CreatedAt)
	})
	return elections, nil
}

// Candidates returns live candidates sorted by endorsement count, most
// endorsed first, with filing time as the tie break.
func (uc ElectionQueryUseCase) Candidates(ctx context.Context, electionID string) ([]entities.Candidate, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return nil, err
	}
	candidates := election.LiveCandidates()
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].Endorsements) == len(candidates[j].Endorsements) {
			return candidates[i].FiledAt.Before(candidates[j].FiledAt)
		}
		return len(candidates[i].Endorsements) > len(candidates[j].Endorsements)
	})
	return candidates, nil
}

// Results resolves the computed outcome. Elections that have not been
// counted yet report not found for the results resource.
func (uc ElectionQueryUseCase) Results(ctx context.Context, electionID string) (entities.Results, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.Results{}, err
	}
	if election.Results == nil {
		return entities.Results{}, domainerrors.ErrResultsNotReady
	}
	return *election.Results, nil
}

// Turnout exposes the live participation counters while voting is open.
type TurnoutSnapshot struct {
	ElectionID     string
	Status         entities.ElectionStatus
	EligibleCount  int
	BallotCount    int
	TurnoutPercent float64
	ObservedAt     time.Time
}

func (uc ElectionQueryUseCase) Turnout(ctx context.Context, electionID string) (TurnoutSnapshot, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return TurnoutSnapshot{}, err
	}
	snapshot := TurnoutSnapshot{
		ElectionID:    election.ElectionID,
		Status:        election.Status,
		EligibleCount: len(election.EligibleVoterIDs),
		BallotCount:   len(election.Ballots),
		ObservedAt:    uc.now(),
	}
	if snapshot.EligibleCount > 0 {
		snapshot.TurnoutPercent = float64(snapshot.BallotCount) * 100 / float64(snapshot.EligibleCount)
	}
	return snapshot, nil
}

func (uc ElectionQueryUseCase) Petition(ctx context.Context, petitionID string) (entities.RecallPetition, error) {
	return uc.Petitions.GetPetition(ctx, strings.TrimSpace(petitionID))
}

func (uc ElectionQueryUseCase) OpenPetitions(ctx context.Context, organizationID string) ([]entities.RecallPetition, error) {
	petitions, err := uc.Petitions.ListOpenPetitions(ctx, strings.TrimSpace(organizationID))
	if err != nil {
		return nil, err
	}
	sort.Slice(petitions, func(i, j int) bool {
		if petitions[i].CreatedAt.Equal(petitions[j].CreatedAt) {
			return petitions[i].PetitionID < petitions[j].PetitionID
		}
		return petitions[i].CreatedAt.Before(petitions[j].CreatedAt)
	})
	return petitions, nil
}

func (uc ElectionQueryUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
