package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/slack-go/slack"
)

// LeaderboardCommandHandler serves the /leaderboard slash command. The text
// names the sport; the board is posted to the configured channel.
func (s *Server) LeaderboardCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := slack.SlashCommandParse(r)
		if err != nil {
			log.Error("Failed to parse slash command", "error", err)
			http.Error(w, "Invalid slash command", http.StatusBadRequest)
			return
		}
		sportID := strings.ToLower(strings.TrimSpace(cmd.Text))
		if sportID == "" {
			respondWithSlackText(w, "Usage: /leaderboard <sport>")
			return
		}

		sport, err := s.announceLeaderboard(r, sportID, 10)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			respondWithSlackText(w, fmt.Sprintf("I don't know a sport called %q.", sportID))
		case err != nil:
			log.Error("Failed to announce leaderboard", "sportID", sportID, "error", err)
			respondWithSlackText(w, "Something went wrong while fetching the leaderboard.")
		default:
			respondWithSlackText(w, fmt.Sprintf("Posted the %s leaderboard.", sport.Name))
		}
	}
}

// respondWithSlackText writes an ephemeral reply to a slash command.
func respondWithSlackText(w http.ResponseWriter, text string) {
	writeJSON(w, http.StatusOK, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text})
}
