package store

import (
	"encoding/json"
	"fmt"

	"housevault/internal/sim/house"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/player"
)

// Durable backends keep each entity as its JSON record plus a few columns
// copied out for filtering.

func encodePlayer(p *player.Player) (string, error) {
	b, err := json.Marshal(p.ToRecord())
	if err != nil {
		return "", fmt.Errorf("encode player %s: %w", p.ID, err)
	}
	return string(b), nil
}

func decodePlayer(doc string) (*player.Player, error) {
	var r player.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return player.FromRecord(r)
}

func encodeHouse(h *house.House) (string, error) {
	b, err := json.Marshal(h.ToRecord())
	if err != nil {
		return "", fmt.Errorf("encode house %s: %w", h.ID, err)
	}
	return string(b), nil
}

func decodeHouse(doc string) (*house.House, error) {
	var r house.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode house: %w", err)
	}
	return house.FromRecord(r)
}

func encodeSession(s occupancy.Session) (string, error) {
	b, err := json.Marshal(s.ToRecord())
	if err != nil {
		return "", fmt.Errorf("encode session %s: %w", s.PlayerID, err)
	}
	return string(b), nil
}

func decodeSession(doc string) (occupancy.Session, error) {
	var r occupancy.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return occupancy.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return occupancy.FromRecord(r)
}

func encodeBadge(b player.Badge) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode badge: %w", err)
	}
	return string(raw), nil
}

func decodeBadge(doc string) (player.Badge, error) {
	var b player.Badge
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return player.Badge{}, fmt.Errorf("decode badge: %w", err)
	}
	return b, nil
}
