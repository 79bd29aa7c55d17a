package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/pubsub"
)

const maxBodyBytes = 1 << 20

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &matchmaking.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// writeError maps domain errors to status codes. match is included in the
// body when the caller should see the match state alongside the error.
func writeError(w http.ResponseWriter, err error, match *matchmaking.Match) {
	var verr *matchmaking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, matchmaking.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, matchmaking.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, matchmaking.ErrAwaitingFeedback):
		writeJSON(w, http.StatusAccepted, errorResponse{Error: err.Error(), Match: match})
	case errors.Is(err, matchmaking.ErrDisputedResult):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Match: match})
	case errors.Is(err, matchmaking.ErrDuplicateActiveEntry),
		errors.Is(err, matchmaking.ErrConflict),
		errors.Is(err, matchmaking.ErrFeedbackExists),
		errors.Is(err, matchmaking.ErrAlreadyTerminal),
		errors.Is(err, matchmaking.ErrNotExpired):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) JoinQueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := identityFromContext(r)
		var req joinRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		if req.SportID == "" {
			writeError(w, &matchmaking.ValidationError{Field: "sport_id", Reason: "is required"}, nil)
			return
		}

		res, err := s.Service.JoinQueue(r.Context(), caller.UserID, req.SportID, req.Criteria)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		log.Info("Player joined the queue", "userID", caller.UserID, "sportID", req.SportID, "entryID", res.Entry.ID, "matched", res.Match != nil)
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) ActiveEntryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			writeError(w, &matchmaking.ValidationError{Field: "sport_id", Reason: "is required"}, nil)
			return
		}
		entry, err := s.Service.ActiveEntry(r.Context(), identityFromContext(r).UserID, sportID)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) GetEntryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := s.Service.GetEntry(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err, nil)
			return
		}
		caller := identityFromContext(r)
		if entry.UserID != caller.UserID && !caller.isAdmin() {
			writeError(w, matchmaking.ErrForbidden, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) CancelQueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := s.Service.CancelQueue(r.Context(), r.PathValue("id"), identityFromContext(r).UserID)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) ListWaitingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.Service.ListWaiting(r.Context(), r.PathValue("sportID"))
		if err != nil {
			writeError(w, err, nil)
			return
		}
		if entries == nil {
			entries = []matchmaking.QueueEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) GetMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match, err := s.Service.GetMatch(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err, nil)
			return
		}
		caller := identityFromContext(r)
		if _, ok := match.Player(caller.UserID); !ok && !caller.isAdmin() {
			writeError(w, matchmaking.ErrForbidden, nil)
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

// matchAction adapts a participant operation on a match to a handler.
func matchAction(action func(r *http.Request, matchID, userID string) (*matchmaking.Match, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match, err := action(r, r.PathValue("id"), identityFromContext(r).UserID)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

func (s *Server) ConfirmMatchHandler() http.HandlerFunc {
	return matchAction(func(r *http.Request, matchID, userID string) (*matchmaking.Match, error) {
		return s.Service.ConfirmMatch(r.Context(), matchID, userID)
	})
}

func (s *Server) StartMatchHandler() http.HandlerFunc {
	return matchAction(func(r *http.Request, matchID, userID string) (*matchmaking.Match, error) {
		return s.Service.StartMatch(r.Context(), matchID, userID)
	})
}

func (s *Server) CancelMatchHandler() http.HandlerFunc {
	return matchAction(func(r *http.Request, matchID, userID string) (*matchmaking.Match, error) {
		return s.Service.CancelMatch(r.Context(), matchID, userID)
	})
}

// FeedbackHandler records the caller's report. The response carries the
// match, which is completed or disputed once both reports are in.
func (s *Server) FeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		match, err := s.Service.SubmitFeedback(r.Context(), matchmaking.FeedbackInput{
			MatchID:          r.PathValue("id"),
			FromUserID:       identityFromContext(r).UserID,
			ReportedWinnerID: req.ReportedWinnerID,
			Scores:           req.Scores,
			Comments:         req.Comments,
		})
		if err != nil {
			writeError(w, err, match)
			return
		}
		writeJSON(w, http.StatusCreated, match)
	}
}

func (s *Server) ResolveMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		match, err := s.Service.ResolveMatch(r.Context(), r.PathValue("id"), req.WinnerID)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		log.Info("Match resolved by admin", "matchID", match.ID, "winnerID", req.WinnerID, "admin", identityFromContext(r).UserID)
		writeJSON(w, http.StatusOK, match)
	}
}

// RequestSettleHandler queues a settle-match message for the push
// subscription. Without a Pub/Sub client the match is settled inline.
func (s *Server) RequestSettleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.PathValue("id")
		if s.pubsub == nil {
			match, err := s.Service.Settle(r.Context(), matchID)
			if err != nil {
				writeError(w, err, match)
				return
			}
			writeJSON(w, http.StatusOK, match)
			return
		}

		match, err := s.Service.GetMatch(r.Context(), matchID)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		if match.Status.IsTerminal() {
			writeError(w, fmt.Errorf("match is %s: %w", match.Status, matchmaking.ErrAlreadyTerminal), match)
			return
		}
		req := matchmaking.SettleRequest{MatchID: match.ID}
		if err := s.pubsub.SendMessage(r.Context(), pubsub.TopicSettleMatch, req); err != nil {
			log.Error("Failed to queue settle request", "matchID", match.ID, "error", err)
			writeError(w, err, nil)
			return
		}
		log.Info("Settle request queued", "matchID", match.ID, "admin", identityFromContext(r).UserID)
		writeJSON(w, http.StatusAccepted, req)
	}
}

func (s *Server) SweepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Service.Sweep(r.Context())
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) ListSportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sports, err := s.Catalog.ListSports(r.Context())
		if err != nil {
			writeError(w, err, nil)
			return
		}
		if sports == nil {
			sports = []catalog.Sport{}
		}
		writeJSON(w, http.StatusOK, sports)
	}
}

func leaderboardLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 10
	}
	return min(limit, 100)
}

func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sportID := r.PathValue("sportID")
		if _, err := s.Catalog.GetSport(r.Context(), sportID); err != nil {
			writeError(w, err, nil)
			return
		}
		board, err := s.Catalog.Leaderboard(r.Context(), sportID, leaderboardLimit(r))
		if err != nil {
			writeError(w, err, nil)
			return
		}
		if board == nil {
			board = []catalog.PlayerRating{}
		}
		writeJSON(w, http.StatusOK, board)
	}
}

// AnnounceLeaderboardHandler posts the leaderboard of a sport to Slack.
func (s *Server) AnnounceLeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sport, err := s.announceLeaderboard(r, r.PathValue("sportID"), leaderboardLimit(r))
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, sport)
	}
}

func (s *Server) announceLeaderboard(r *http.Request, sportID string, limit int) (*catalog.Sport, error) {
	sport, err := s.Catalog.GetSport(r.Context(), sportID)
	if err != nil {
		return nil, err
	}
	board, err := s.Catalog.Leaderboard(r.Context(), sport.ID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.Notifier.SendLeaderboard(r.Context(), *sport, board, isDryRunFromContext(r)); err != nil {
		return nil, fmt.Errorf("failed to send leaderboard: %w", err)
	}
	return sport, nil
}
