package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gosimple/slug"
	"github.com/joho/godotenv"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/database"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/rating"
)

const (
	numPlayers = 40
	// numQueued players are put in the queue so a local server starts with
	// a mix of waiting entries and fresh matches.
	numQueued = 16
)

var sports = []string{"Badminton", "Padel", "Tennis", "Squash"}

var venues = []catalog.Venue{
	{Name: "Nørrebro Hallen", City: "Copenhagen", Lat: 55.6943, Lng: 12.5446},
	{Name: "Valby Idrætspark", City: "Copenhagen", Lat: 55.6631, Lng: 12.5064},
	{Name: "Aarhus Racket Center", City: "Aarhus", Lat: 56.1629, Lng: 10.2039},
}

// Simplified config loading for the script
func loadConfig() map[string]string {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	config := map[string]string{"DB_NAME": "courtmatch.db"}
	for _, key := range []string{"DB_NAME", "TURSO_PRIMARY_URL", "TURSO_AUTH_TOKEN"} {
		if value, ok := os.LookupEnv(key); ok {
			config[key] = value
		}
	}
	return config
}

func main() {
	log.Info("Starting database seeder...")
	cfg := loadConfig()
	ctx := context.Background()

	db, teardown, err := database.InitDB(cfg["DB_NAME"], cfg["TURSO_PRIMARY_URL"], cfg["TURSO_AUTH_TOKEN"])
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer teardown()
	log.Info("Successfully connected to the database.")

	cat := catalog.New(db)
	for _, name := range sports {
		if _, err := cat.AddSport(ctx, name, 2); err != nil {
			log.Fatalf("Failed to add sport %s: %s", name, err)
		}
	}
	for _, v := range venues {
		v.ID = slug.Make(v.Name)
		if _, err := cat.AddVenue(ctx, v); err != nil {
			log.Fatalf("Failed to add venue %s: %s", v.Name, err)
		}
	}
	log.Info("Ensured sports and venues exist.", "sports", len(sports), "venues", len(venues))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	genders := []catalog.Gender{catalog.GenderMale, catalog.GenderFemale, catalog.GenderUnknown}
	for i := 0; i < numPlayers; i++ {
		profile := catalog.Profile{
			UserID: fmt.Sprintf("seed-player-%02d", i),
			Name:   fmt.Sprintf("Seeder Player %02d", i),
			Gender: genders[rng.Intn(len(genders))],
		}
		if err := cat.UpsertProfile(ctx, profile); err != nil {
			log.Fatalf("Failed to add player %s: %s", profile.UserID, err)
		}
		for _, sport := range sports {
			value := rating.Base + rng.Intn(801) - 400
			if err := cat.SetRating(ctx, profile.UserID, slug.Make(sport), value); err != nil {
				log.Fatalf("Failed to set rating for %s: %s", profile.UserID, err)
			}
		}
	}
	log.Info("Ensured seed players exist.", "total", numPlayers)

	store := matchmaking.NewStore(db, time.Hour)
	svc := matchmaking.NewService(store, cat, events.Discard{}, metrics.NewService(), 3)
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	tolerance := 300
	matched := 0
	for i := 0; i < numQueued; i++ {
		criteria := matchmaking.Criteria{
			PreferredDate:   tomorrow,
			PreferredTime:   "18:00",
			RatingTolerance: &tolerance,
		}
		res, err := svc.JoinQueue(ctx, fmt.Sprintf("seed-player-%02d", i), "badminton", criteria)
		if err != nil {
			log.Warn("Failed to queue seed player", "index", i, "error", err)
			continue
		}
		if res.Match != nil {
			matched++
		}
	}
	log.Info("Seeding complete!", "queued", numQueued, "matches", matched)
}
