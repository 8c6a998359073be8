package occupancy

import (
	"fmt"
	"time"

	"housevault/internal/sim/grid"
)

// Session is one player's presence inside one house. A player holds at most
// one session and a house hosts at most one.
type Session struct {
	PlayerID       string
	HouseID        string
	AccessTime     time.Time
	LatestActivity time.Time
	Location       grid.Cell
}

// Record is the stored form of a Session.
type Record struct {
	PlayerID       string `json:"player_id"`
	HouseID        string `json:"house_id"`
	AccessTime     string `json:"access_time"`
	LatestActivity string `json:"latest_activity"`
	PlayerLocation [2]int `json:"player_location"`
}

func (s Session) ToRecord() Record {
	return Record{
		PlayerID:       s.PlayerID,
		HouseID:        s.HouseID,
		AccessTime:     s.AccessTime.UTC().Format(time.RFC3339Nano),
		LatestActivity: s.LatestActivity.UTC().Format(time.RFC3339Nano),
		PlayerLocation: [2]int{s.Location.X, s.Location.Y},
	}
}

func FromRecord(r Record) (Session, error) {
	if r.PlayerID == "" || r.HouseID == "" {
		return Session{}, fmt.Errorf("session record: missing player_id or house_id")
	}
	at, err := time.Parse(time.RFC3339Nano, r.AccessTime)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: access_time: %w", r.PlayerID, err)
	}
	la, err := time.Parse(time.RFC3339Nano, r.LatestActivity)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: latest_activity: %w", r.PlayerID, err)
	}
	loc := grid.Cell{X: r.PlayerLocation[0], Y: r.PlayerLocation[1]}
	if !grid.InBounds(loc) {
		return Session{}, fmt.Errorf("session %s: location %v out of bounds", r.PlayerID, r.PlayerLocation)
	}
	return Session{
		PlayerID:       r.PlayerID,
		HouseID:        r.HouseID,
		AccessTime:     at,
		LatestActivity: la,
		Location:       loc,
	}, nil
}
