package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	server "github.com/mauv0809/courtmatch/internal/http"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/spf13/cobra"
)

var (
	joinDate      string
	joinTime      string
	joinVenue     string
	joinGender    string
	joinTolerance int
	comments      string
	scores        matchmaking.BehaviorScores
	limit         int
	tokenSecret   string
	tokenTTL      time.Duration
)

func init() {
	joinCmd.Flags().StringVar(&joinDate, "date", time.Now().Format("2006-01-02"), "Preferred date (YYYY-MM-DD)")
	joinCmd.Flags().StringVar(&joinTime, "time", "18:00", "Preferred time (HH:MM)")
	joinCmd.Flags().StringVar(&joinVenue, "venue", "", "Preferred venue id")
	joinCmd.Flags().StringVar(&joinGender, "gender", "any", "Opponent gender preference: any, male or female")
	joinCmd.Flags().IntVar(&joinTolerance, "tolerance", 0, "Rating tolerance (0 uses the server default)")

	for _, s := range []struct {
		name  string
		value *int
	}{
		{"skill-accuracy", &scores.SkillAccuracy},
		{"fair-play", &scores.FairPlay},
		{"punctuality", &scores.Punctuality},
		{"tone", &scores.Tone},
		{"aggressiveness", &scores.Aggressiveness},
		{"sportsmanship", &scores.Sportsmanship},
	} {
		feedbackCmd.Flags().IntVar(s.value, s.name, 3, "Score from 1 to 5")
	}
	feedbackCmd.Flags().StringVar(&comments, "comments", "", "Free text comments about the match")

	leaderboardCmd.Flags().IntVar(&limit, "limit", 10, "Number of players to list")
	announceCmd.Flags().IntVar(&limit, "limit", 10, "Number of players to post")

	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "The server's JWT_SECRET")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "How long the token is valid")
	tokenCmd.MarkFlagRequired("secret")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(sportsCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(activeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(waitingCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(callOffCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(settleCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(tokenCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

var sportsCmd = &cobra.Command{
	Use:   "sports",
	Short: "List the sports players can queue for",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/sports")
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <sport>",
	Short: "Join the matchmaking queue for a sport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"sport_id":          args[0],
			"preferred_date":    joinDate,
			"preferred_time":    joinTime,
			"gender_preference": joinGender,
		}
		if joinVenue != "" {
			body["venue_id"] = joinVenue
		}
		if joinTolerance > 0 {
			body["rating_tolerance"] = joinTolerance
		}
		return performRequest(http.MethodPost, "/queue", body)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <entry-id>",
	Short: "Show a queue entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/queue/" + args[0])
	},
}

var activeCmd = &cobra.Command{
	Use:   "active <sport>",
	Short: "Show your waiting entry for a sport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/queue/active?sport_id=" + args[0])
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <entry-id>",
	Short: "Leave the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodDelete, "/queue/"+args[0], nil)
	},
}

var waitingCmd = &cobra.Command{
	Use:   "waiting <sport>",
	Short: "List the entries waiting for a sport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/sports/" + args[0] + "/queue")
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <match-id>",
	Short: "Show a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/matches/" + args[0])
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <match-id>",
	Short: "Confirm you will play a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/matches/"+args[0]+"/confirm", nil)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <match-id>",
	Short: "Mark a confirmed match as being played",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/matches/"+args[0]+"/start", nil)
	},
}

var callOffCmd = &cobra.Command{
	Use:   "call-off <match-id>",
	Short: "Cancel a match that has not started",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/matches/"+args[0]+"/cancel", nil)
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <match-id> <winner-id>",
	Short: "Report the winner of a match and rate your opponent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"reported_winner_id": args[1],
			"scores":             scores,
		}
		if comments != "" {
			body["comments"] = comments
		}
		return performRequest(http.MethodPost, "/matches/"+args[0]+"/feedback", body)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <match-id> <winner-id>",
	Short: "Settle a match with the given winner (admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/admin/matches/"+args[0]+"/resolve", map[string]string{"winner_id": args[1]})
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle <match-id>",
	Short: "Queue a settle request for a match (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/admin/matches/"+args[0]+"/settle", nil)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale entries and retry matching now (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/admin/sweep", nil)
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <sport>",
	Short: "Show the rating leaderboard of a sport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest(fmt.Sprintf("/sports/%s/leaderboard?limit=%d", args[0], limit))
	},
}

var announceCmd = &cobra.Command{
	Use:   "announce <sport>",
	Short: "Post the leaderboard of a sport to Slack (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, fmt.Sprintf("/admin/sports/%s/leaderboard/announce?limit=%d", args[0], limit), nil)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Sign a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signed, err := server.SignToken(tokenSecret, args[0], role, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	},
}

func performGetRequest(endpoint string) error {
	return performRequest(http.MethodGet, endpoint, nil)
}

func performRequest(method, endpoint string, body any) error {
	url := host + endpoint
	fmt.Printf("Making %s request to %s\n", method, url)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	case userID != "":
		req.Header.Set("X-User-ID", userID)
		if role != "" {
			req.Header.Set("X-User-Role", role)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
