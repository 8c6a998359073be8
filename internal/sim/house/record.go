package house

import (
	"fmt"

	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/grid"
)

type VaultRecord struct {
	Dollars   int            `json:"dollars"`
	Materials map[string]int `json:"materials"`
}

type ConstructionRecord struct {
	MaterialType string `json:"material_type"`
	Location     [2]int `json:"location"`
}

// Record is the stored form of a House.
type Record struct {
	HouseID       string               `json:"house_id"`
	Metadata      map[string]string    `json:"metadata"`
	Abandoned     bool                 `json:"abandoned"`
	AbandonedBy   string               `json:"abandoned_by,omitempty"`
	VaultContents VaultRecord          `json:"vault_contents"`
	Construction  []ConstructionRecord `json:"construction"`
}

func (h *House) ToRecord() Record {
	md := make(map[string]string, len(h.Metadata))
	for k, v := range h.Metadata {
		md[k] = v
	}
	mats := make(map[string]int, len(h.Vault.Materials))
	for k, n := range h.Vault.Materials {
		mats[k.String()] = n
	}
	entries := h.Grid.Entries()
	cons := make([]ConstructionRecord, 0, len(entries))
	for _, e := range entries {
		cons = append(cons, ConstructionRecord{
			MaterialType: e.Kind.String(),
			Location:     [2]int{e.Cell.X, e.Cell.Y},
		})
	}
	return Record{
		HouseID:       h.ID,
		Metadata:      md,
		Abandoned:     h.Abandoned,
		AbandonedBy:   h.AbandonedBy,
		VaultContents: VaultRecord{Dollars: h.Vault.Dollars, Materials: mats},
		Construction:  cons,
	}
}

// FromRecord rebuilds a House, rejecting anything a valid house can't hold.
func FromRecord(r Record) (*House, error) {
	if r.HouseID == "" {
		return nil, fmt.Errorf("house record: missing house_id")
	}
	if r.VaultContents.Dollars < 0 {
		return nil, fmt.Errorf("house %s: negative dollars", r.HouseID)
	}
	vault := VaultContents{Dollars: r.VaultContents.Dollars, Materials: make(map[catalogs.Kind]int, len(r.VaultContents.Materials))}
	for name, n := range r.VaultContents.Materials {
		k, err := catalogs.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("house %s: vault material %q: %w", r.HouseID, name, err)
		}
		if !k.Stockable() {
			return nil, fmt.Errorf("house %s: %s can't be stocked", r.HouseID, name)
		}
		if n < 0 {
			return nil, fmt.Errorf("house %s: negative count for %s", r.HouseID, name)
		}
		vault.Materials[k] = n
	}

	g := grid.New()
	for _, c := range r.Construction {
		k, err := catalogs.Parse(c.MaterialType)
		if err != nil {
			return nil, fmt.Errorf("house %s: construction material %q: %w", r.HouseID, c.MaterialType, err)
		}
		if k == catalogs.Empty || k == catalogs.HouseWall {
			return nil, fmt.Errorf("house %s: %s can't be stored in construction", r.HouseID, c.MaterialType)
		}
		cell := grid.Cell{X: c.Location[0], Y: c.Location[1]}
		if !grid.InBounds(cell) {
			return nil, fmt.Errorf("house %s: location %v out of bounds", r.HouseID, c.Location)
		}
		if prev, _ := g.Get(cell); prev != catalogs.Empty {
			return nil, fmt.Errorf("house %s: duplicate cell %v", r.HouseID, c.Location)
		}
		if grid.IsDoor(cell) && !k.Passable() {
			return nil, fmt.Errorf("house %s: %s blocks the door", r.HouseID, c.MaterialType)
		}
		g.Place(cell, k)
	}
	if n := g.VaultCount(); n != 1 {
		return nil, fmt.Errorf("house %s: expected exactly one vault, found %d", r.HouseID, n)
	}

	md := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		md[k] = v
	}
	return &House{
		ID:          r.HouseID,
		Metadata:    md,
		Abandoned:   r.Abandoned,
		AbandonedBy: r.AbandonedBy,
		Vault:       vault,
		Grid:        g,
	}, nil
}
