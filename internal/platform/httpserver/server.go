package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	electionservice "simgov/contexts/org-governance/election-service"
	electionerrors "simgov/contexts/org-governance/election-service/domain/errors"
	electionhttp "simgov/contexts/org-governance/election-service/transport/http"
	proposalservice "simgov/contexts/org-governance/proposal-service"
	proposalerrors "simgov/contexts/org-governance/proposal-service/domain/errors"
	proposalhttp "simgov/contexts/org-governance/proposal-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "simgov/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	elections electionservice.Module
	proposals proposalservice.Module
}

func New(
	elections electionservice.Module,
	proposals proposalservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		elections: elections,
		proposals: proposals,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/governance/v1/elections", s.handleCreateElection)
	s.mux.HandleFunc("GET /api/governance/v1/elections/{election_id}", s.handleGetElection)
	s.mux.HandleFunc("GET /api/governance/v1/organizations/{org_id}/elections", s.handleListElections)
	s.mux.HandleFunc("POST /api/governance/v1/elections/{election_id}/candidates", s.handleFileCandidacy)
	s.mux.HandleFunc("GET /api/governance/v1/elections/{election_id}/candidates", s.handleListCandidates)
	s.mux.HandleFunc("POST /api/governance/v1/elections/{election_id}/candidates/withdraw", s.handleWithdrawCandidacy)
	s.mux.HandleFunc("POST /api/governance/v1/elections/{election_id}/candidates/{candidate_id}/endorse", s.handleEndorseCandidate)
	s.mux.HandleFunc("POST /api/governance/v1/elections/{election_id}/votes", s.handleCastBallot)
	s.mux.HandleFunc("GET /api/governance/v1/elections/{election_id}/results", s.handleResults)
	s.mux.HandleFunc("GET /api/governance/v1/elections/{election_id}/turnout", s.handleTurnout)
	s.mux.HandleFunc("POST /api/governance/v1/elections/{election_id}/cancel", s.handleCancelElection)

	s.mux.HandleFunc("POST /api/governance/v1/petitions", s.handleCreatePetition)
	s.mux.HandleFunc("GET /api/governance/v1/petitions/{petition_id}", s.handleGetPetition)
	s.mux.HandleFunc("GET /api/governance/v1/organizations/{org_id}/petitions", s.handleListPetitions)
	s.mux.HandleFunc("POST /api/governance/v1/petitions/{petition_id}/signatures", s.handleSignPetition)
	s.mux.HandleFunc("POST /api/governance/v1/petitions/{petition_id}/withdraw", s.handleWithdrawPetition)

	s.mux.HandleFunc("POST /api/governance/v1/proposals", s.handleCreateProposal)
	s.mux.HandleFunc("GET /api/governance/v1/proposals/{proposal_id}", s.handleGetProposal)
	s.mux.HandleFunc("GET /api/governance/v1/organizations/{org_id}/proposals", s.handleListProposals)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/sponsor", s.handleSponsorProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/submit", s.handleSubmitProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/votes", s.handleCastProposalVote)
	s.mux.HandleFunc("GET /api/governance/v1/proposals/{proposal_id}/tally", s.handleProposalTally)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/amendments", s.handleProposeAmendment)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/amendments/{amendment_id}/votes", s.handleCastAmendmentVote)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/comments", s.handlePostComment)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/withdraw", s.handleWithdrawProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/implementation/start", s.handleStartImplementation)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/implementation/steps", s.handleAddImplementationStep)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/implementation/steps/{step_id}/complete", s.handleCompleteImplementationStep)
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	officerID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	var req electionhttp.CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.CreateElectionHandler(
		r.Context(),
		officerID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.GetElectionHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.ListElectionsHandler(r.Context(), r.PathValue("org_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFileCandidacy(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	var req electionhttp.FileCandidacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.FileCandidacyHandler(r.Context(), r.PathValue("election_id"), playerID, req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.ListCandidatesHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdrawCandidacy(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	if err := s.elections.Handler.WithdrawCandidacyHandler(r.Context(), r.PathValue("election_id"), playerID); err != nil {
		writeElectionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndorseCandidate(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	err := s.elections.Handler.EndorseCandidateHandler(
		r.Context(),
		r.PathValue("election_id"),
		r.PathValue("candidate_id"),
		playerID,
	)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	voterID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	var req electionhttp.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.CastBallotHandler(r.Context(), r.PathValue("election_id"), voterID, req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.ResultsHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTurnout(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.TurnoutHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelElection(w http.ResponseWriter, r *http.Request) {
	officerID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	if err := s.elections.Handler.CancelElectionHandler(r.Context(), r.PathValue("election_id"), officerID); err != nil {
		writeElectionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreatePetition(w http.ResponseWriter, r *http.Request) {
	initiatorID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	var req electionhttp.CreatePetitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.elections.Handler.CreatePetitionHandler(r.Context(), initiatorID, req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPetition(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.GetPetitionHandler(r.Context(), r.PathValue("petition_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPetitions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.elections.Handler.ListPetitionsHandler(r.Context(), r.PathValue("org_id"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignPetition(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeElectionError)
	if !ok {
		return
	}
	resp, err := s.elections.Handler.SignPetitionHandler(r.Context(), r.PathValue("petition_id"), playerID)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdrawPetition(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, writeElectionError); !ok {
		return
	}
	if err := s.elections.Handler.WithdrawPetitionHandler(r.Context(), r.PathValue("petition_id")); err != nil {
		writeElectionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	authorID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	var req proposalhttp.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProposalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.proposals.Handler.CreateProposalHandler(
		r.Context(),
		authorID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	resp, err := s.proposals.Handler.GetProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.proposals.Handler.ListProposalsHandler(r.Context(), r.PathValue("org_id"))
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSponsorProposal(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	resp, err := s.proposals.Handler.SponsorProposalHandler(r.Context(), r.PathValue("proposal_id"), playerID)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitProposal(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	resp, err := s.proposals.Handler.SubmitProposalHandler(r.Context(), r.PathValue("proposal_id"), playerID)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastProposalVote(w http.ResponseWriter, r *http.Request) {
	voterID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	var req proposalhttp.CastProposalVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProposalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.proposals.Handler.CastProposalVoteHandler(r.Context(), r.PathValue("proposal_id"), voterID, req)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProposalTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.proposals.Handler.TallyHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProposeAmendment(w http.ResponseWriter, r *http.Request) {
	authorID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	var req proposalhttp.ProposeAmendmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProposalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.proposals.Handler.ProposeAmendmentHandler(r.Context(), r.PathValue("proposal_id"), authorID, req)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCastAmendmentVote(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	var req proposalhttp.CastAmendmentVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProposalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.proposals.Handler.CastAmendmentVoteHandler(
		r.Context(),
		r.PathValue("proposal_id"),
		r.PathValue("amendment_id"),
		playerID,
		req,
	)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	authorID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	var req proposalhttp.PostCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProposalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.proposals.Handler.PostCommentHandler(r.Context(), r.PathValue("proposal_id"), authorID, req)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleWithdrawProposal(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	if err := s.proposals.Handler.WithdrawProposalHandler(r.Context(), r.PathValue("proposal_id"), playerID); err != nil {
		writeProposalDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartImplementation(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requireUser(w, r, writeProposalError)
	if !ok {
		return
	}
	resp, err := s.proposals.Handler.StartImplementationHandler(r.Context(), r.PathValue("proposal_id"), playerID)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddImplementationStep(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, writeProposalError); !ok {
		return
	}
	var req proposalhttp.AddImplementationStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProposalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.proposals.Handler.AddImplementationStepHandler(r.Context(), r.PathValue("proposal_id"), req)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCompleteImplementationStep(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, writeProposalError); !ok {
		return
	}
	resp, err := s.proposals.Handler.CompleteImplementationStepHandler(
		r.Context(),
		r.PathValue("proposal_id"),
		r.PathValue("step_id"),
	)
	if err != nil {
		writeProposalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeElectionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, electionerrors.ErrElectionNotFound):
		writeElectionError(w, http.StatusNotFound, "election_not_found", err.Error())
	case errors.Is(err, electionerrors.ErrCandidateNotFound):
		writeElectionError(w, http.StatusNotFound, "candidate_not_found", err.Error())
	case errors.Is(err, electionerrors.ErrPetitionNotFound):
		writeElectionError(w, http.StatusNotFound, "petition_not_found", err.Error())
	case errors.Is(err, electionerrors.ErrInvalidElectionSpec),
		errors.Is(err, electionerrors.ErrInvalidBallotShape),
		errors.Is(err, electionerrors.ErrInvalidPetition):
		writeElectionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, electionerrors.ErrNotEligible),
		errors.Is(err, electionerrors.ErrIneligibleToRun):
		writeElectionError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, electionerrors.ErrVotingClosed),
		errors.Is(err, electionerrors.ErrFilingClosed),
		errors.Is(err, electionerrors.ErrWithdrawClosed),
		errors.Is(err, electionerrors.ErrPetitionClosed),
		errors.Is(err, electionerrors.ErrElectionTerminal):
		writeElectionError(w, http.StatusConflict, "window_closed", err.Error())
	case errors.Is(err, electionerrors.ErrAlreadyVoted),
		errors.Is(err, electionerrors.ErrAlreadyCandidate),
		errors.Is(err, electionerrors.ErrAlreadyWithdrawn),
		errors.Is(err, electionerrors.ErrAlreadyEndorsed),
		errors.Is(err, electionerrors.ErrAlreadySigned),
		errors.Is(err, electionerrors.ErrConflict),
		errors.Is(err, electionerrors.ErrIdempotencyConflict):
		writeElectionError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, electionerrors.ErrIdempotencyKeyRequired):
		writeElectionError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, electionerrors.ErrResultsNotReady):
		writeElectionError(w, http.StatusConflict, "results_not_ready", err.Error())
	default:
		writeElectionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeProposalDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, proposalerrors.ErrProposalNotFound):
		writeProposalError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, proposalerrors.ErrAmendmentNotFound):
		writeProposalError(w, http.StatusNotFound, "amendment_not_found", err.Error())
	case errors.Is(err, proposalerrors.ErrCommentNotFound):
		writeProposalError(w, http.StatusNotFound, "comment_not_found", err.Error())
	case errors.Is(err, proposalerrors.ErrStepNotFound):
		writeProposalError(w, http.StatusNotFound, "step_not_found", err.Error())
	case errors.Is(err, proposalerrors.ErrInvalidProposalInput):
		writeProposalError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, proposalerrors.ErrNotEligible),
		errors.Is(err, proposalerrors.ErrNotAuthor):
		writeProposalError(w, http.StatusForbidden, "not_allowed", err.Error())
	case errors.Is(err, proposalerrors.ErrWrongPhase),
		errors.Is(err, proposalerrors.ErrProposalTerminal),
		errors.Is(err, proposalerrors.ErrAmendmentClosed),
		errors.Is(err, proposalerrors.ErrTallyNotReady):
		writeProposalError(w, http.StatusConflict, "wrong_phase", err.Error())
	case errors.Is(err, proposalerrors.ErrInsufficientSponsors):
		writeProposalError(w, http.StatusUnprocessableEntity, "insufficient_sponsors", err.Error())
	case errors.Is(err, proposalerrors.ErrAlreadySponsored),
		errors.Is(err, proposalerrors.ErrAlreadyVoted),
		errors.Is(err, proposalerrors.ErrAlreadyVotedAmendment),
		errors.Is(err, proposalerrors.ErrStepAlreadyCompleted),
		errors.Is(err, proposalerrors.ErrConflict),
		errors.Is(err, proposalerrors.ErrIdempotencyConflict):
		writeProposalError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, proposalerrors.ErrIdempotencyKeyRequired):
		writeProposalError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	default:
		writeProposalError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeElectionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, electionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeProposalError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, proposalhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requireUser(w http.ResponseWriter, r *http.Request, writeError func(http.ResponseWriter, int, string, string)) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}
