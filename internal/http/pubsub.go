package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/pubsub"
)

// pushMessage is the envelope Pub/Sub push subscriptions deliver.
type pushMessage struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data string `json:"data"`
	} `json:"message"`
}

// SettleMatchPushHandler settles the match named in a settle-match message.
// Outcomes that retrying cannot change are acknowledged with 2xx so Pub/Sub
// stops redelivering them.
func (s *Server) SettleMatchPushHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		log.Debug("Received settle match message", "body", string(bodyBytes))

		var pubsubMsg pushMessage
		if err := json.Unmarshal(bodyBytes, &pubsubMsg); err != nil {
			log.Error("Failed to unmarshal wrapper JSON", "error", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		rawData, err := base64.StdEncoding.DecodeString(pubsubMsg.Message.Data)
		if err != nil {
			log.Error("Failed to decode base64 data", "error", err)
			http.Error(w, "Invalid base64 data", http.StatusBadRequest)
			return
		}

		// Push delivery works without a Pub/Sub client; decoding is local.
		decode := pubsub.Decode
		if s.pubsub != nil {
			decode = s.pubsub.ProcessMessage
		}
		var req matchmaking.SettleRequest
		if err := decode(rawData, &req); err != nil || req.MatchID == "" {
			log.Error("Failed to decode settle request", "error", err)
			http.Error(w, "Invalid settle request", http.StatusBadRequest)
			return
		}

		match, err := s.Service.Settle(r.Context(), req.MatchID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, match)
		case errors.Is(err, matchmaking.ErrNotFound),
			errors.Is(err, matchmaking.ErrAlreadyTerminal),
			errors.Is(err, matchmaking.ErrDisputedResult):
			log.Warn("Settle request acknowledged without settling", "matchID", req.MatchID, "reason", err)
			writeJSON(w, http.StatusOK, errorResponse{Error: err.Error(), Match: match})
		default:
			writeError(w, err, match)
		}
	}
}
