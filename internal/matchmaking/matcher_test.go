package matchmaking

import (
	"testing"
	"time"

	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func waiting(id, userID string, tolerance int, createdAt time.Time) QueueEntry {
	return QueueEntry{
		ID:               id,
		UserID:           userID,
		SportID:          "badminton",
		PreferredDate:    testDate,
		PreferredTime:    "17:00",
		GenderPreference: GenderAny,
		RatingTolerance:  tolerance,
		Status:           EntryWaiting,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(10 * time.Minute),
	}
}

func snapshots(ratings map[string]int) map[string]catalog.PlayerSnapshot {
	out := make(map[string]catalog.PlayerSnapshot, len(ratings))
	for id, r := range ratings {
		out[id] = catalog.PlayerSnapshot{Rating: r}
	}
	return out
}

func TestDistanceKm(t *testing.T) {
	// Copenhagen to Aarhus is roughly 157 km.
	d := distanceKm(55.6761, 12.5683, 56.1629, 10.2039)
	assert.InDelta(t, 157, d, 3)
	assert.InDelta(t, 0, distanceKm(10, 10, 10, 10), 1e-9)
}

func TestSelectCandidate_UsesStricterTolerance(t *testing.T) {
	entry := waiting("a", "alice", 200, t0)
	bob := waiting("b", "bob", 150, t0.Add(time.Second))
	snaps := snapshots(map[string]int{"alice": 1400, "bob": 1500})

	got := selectCandidate(entry, []QueueEntry{entry, bob}, snaps, nil, t0)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)

	bob.RatingTolerance = 99
	assert.Nil(t, selectCandidate(entry, []QueueEntry{bob}, snaps, nil, t0))
}

func TestSelectCandidate_FarApartRatingsDoNotMatch(t *testing.T) {
	carol := waiting("c", "carol", 50, t0)
	dave := waiting("d", "dave", 50, t0)
	snaps := snapshots(map[string]int{"carol": 1000, "dave": 1400})

	assert.Nil(t, selectCandidate(carol, []QueueEntry{carol, dave}, snaps, nil, t0))
	assert.Nil(t, selectCandidate(dave, []QueueEntry{carol, dave}, snaps, nil, t0))
}

func TestSelectCandidate_PrefersQualityThenAgeThenID(t *testing.T) {
	entry := waiting("e", "eve", 300, t0.Add(time.Minute))
	close1 := waiting("z", "zed", 300, t0.Add(2*time.Second))
	close2 := waiting("y", "yan", 300, t0.Add(time.Second))
	close3 := waiting("x", "xia", 300, t0.Add(time.Second))
	far := waiting("f", "fay", 300, t0)
	snaps := snapshots(map[string]int{"eve": 1300, "zed": 1310, "yan": 1290, "xia": 1310, "fay": 1500})

	pool := []QueueEntry{far, close1, close2, close3, entry}
	got := selectCandidate(entry, pool, snaps, nil, t0.Add(time.Minute))
	require.NotNil(t, got)
	assert.Equal(t, "x", got.ID, "equal quality and age falls back to the lowest id")

	got = selectCandidate(entry, pool, snaps, map[string]bool{"x": true, "y": true}, t0.Add(time.Minute))
	require.NotNil(t, got)
	assert.Equal(t, "z", got.ID)
}

func TestSelectCandidate_Filters(t *testing.T) {
	now := t0.Add(time.Minute)
	base := waiting("a", "alice", 200, t0)

	tests := []struct {
		name   string
		modify func(e, c *QueueEntry, snaps map[string]catalog.PlayerSnapshot)
		match  bool
	}{
		{"compatible", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) {}, true},
		{"same user", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { c.UserID = e.UserID }, false},
		{"different date", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { c.PreferredDate = "2024-06-02" }, false},
		{"different time still matches", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { c.PreferredTime = "09:00" }, true},
		{"candidate expired", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { c.ExpiresAt = t0 }, false},
		{"candidate not waiting", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { c.Status = EntryCancelled }, false},
		{"other sport", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { c.SportID = "padel" }, false},
		{"same venue", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) {
			e.VenueID, c.VenueID = strPtr("v1"), strPtr("v1")
		}, true},
		{"different venue", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) {
			e.VenueID, c.VenueID = strPtr("v1"), strPtr("v2")
		}, false},
		{"one venue only", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) { e.VenueID = strPtr("v1") }, true},
		{"within both radii", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) {
			e.Location = &GeoArea{Lat: 55.6761, Lng: 12.5683, RadiusKm: 10}
			c.Location = &GeoArea{Lat: 55.7000, Lng: 12.5500, RadiusKm: 5}
		}, true},
		{"outside the smaller radius", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) {
			e.Location = &GeoArea{Lat: 55.6761, Lng: 12.5683, RadiusKm: 200}
			c.Location = &GeoArea{Lat: 56.1629, Lng: 10.2039, RadiusKm: 100}
		}, false},
		{"gender preference satisfied both ways", func(e, c *QueueEntry, s map[string]catalog.PlayerSnapshot) {
			e.GenderPreference, c.GenderPreference = GenderMale, GenderFemale
			s["alice"] = catalog.PlayerSnapshot{Rating: 1300, Gender: catalog.GenderFemale}
			s["bob"] = catalog.PlayerSnapshot{Rating: 1300, Gender: catalog.GenderMale}
		}, true},
		{"gender preference not reciprocated", func(e, c *QueueEntry, s map[string]catalog.PlayerSnapshot) {
			c.GenderPreference = GenderMale
			s["alice"] = catalog.PlayerSnapshot{Rating: 1300, Gender: catalog.GenderFemale}
			s["bob"] = catalog.PlayerSnapshot{Rating: 1300, Gender: catalog.GenderMale}
		}, false},
		{"unknown gender only satisfies any", func(e, c *QueueEntry, _ map[string]catalog.PlayerSnapshot) {
			e.GenderPreference = GenderMale
		}, false},
		{"candidate without profile", func(e, c *QueueEntry, s map[string]catalog.PlayerSnapshot) { delete(s, "bob") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			c := waiting("b", "bob", 200, t0.Add(time.Second))
			snaps := snapshots(map[string]int{"alice": 1300, "bob": 1300})
			tt.modify(&e, &c, snaps)

			got := selectCandidate(e, []QueueEntry{c}, snaps, nil, now)
			if tt.match {
				require.NotNil(t, got)
				assert.Equal(t, "b", got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}
