// Package house is the house aggregate: the construction grid, the vault
// contents and the rules that keep the vault reachable from the door.
package house

import (
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/logic/pathfind"
	"housevault/internal/sim/tuning"
)

type House struct {
	ID          string
	Metadata    map[string]string
	Abandoned   bool
	AbandonedBy string
	Vault       VaultContents
	Grid        *grid.Grid
}

// New builds a fresh house: vault at the canonical cell, two short wood wall
// runs flanking the door row.
func New(id string, d tuning.House) *House {
	g := grid.New()
	g.Place(grid.VaultStart, catalogs.Vault)
	for x := 2; x <= 6; x++ {
		g.Place(grid.Cell{X: x, Y: grid.Door.Y - 1}, catalogs.WoodWall)
		g.Place(grid.Cell{X: x, Y: grid.Door.Y + 1}, catalogs.WoodWall)
	}
	return &House{
		ID:       id,
		Metadata: map[string]string{},
		Vault:    NewVaultContents(d.StartingDollars, d.StartingWoodWalls),
		Grid:     g,
	}
}

func (h *House) MaterialAt(c grid.Cell) (catalogs.Kind, error) {
	return h.Grid.Get(c)
}

// IsEditAllowedLocation reports whether c may ever be edited: inside the grid
// and not the door.
func (h *House) IsEditAllowedLocation(c grid.Cell) bool {
	return grid.InBounds(c) && !grid.IsDoor(c)
}

func (h *House) VaultCell() grid.Cell {
	c, ok := h.Grid.VaultCell()
	if !ok {
		return grid.VaultStart
	}
	return c
}

// SetMaterial replaces whatever sits at c with k and returns the prior kind.
// Reachability is not checked here; Build does that.
func (h *House) SetMaterial(c grid.Cell, k catalogs.Kind) (catalogs.Kind, error) {
	if !grid.InBounds(c) {
		return catalogs.Empty, fault.ErrOutOfBounds
	}
	if grid.IsDoor(c) {
		return catalogs.Empty, fault.ErrDoorCell
	}
	if k != catalogs.Empty && !k.Placeable() {
		return catalogs.Empty, fault.ErrNotPlaceable
	}
	cur, _ := h.Grid.Get(c)
	if cur == catalogs.Vault {
		return catalogs.Empty, fault.ErrVaultCell
	}
	h.Grid.Remove(c)
	h.Grid.Place(c, k)
	return cur, nil
}

// MoveVault relocates the vault to an Empty target. The move is undone when
// the door can no longer reach the new cell.
func (h *House) MoveVault(target grid.Cell) (pathfind.Path, error) {
	if !grid.InBounds(target) {
		return nil, fault.ErrOutOfBounds
	}
	if grid.IsDoor(target) {
		return nil, fault.ErrDoorCell
	}
	if k, _ := h.Grid.Get(target); k != catalogs.Empty {
		return nil, fault.ErrTargetOccupied
	}
	from, hadVault := h.Grid.VaultCell()
	if hadVault {
		h.Grid.Remove(from)
	}
	h.Grid.Place(target, catalogs.Vault)

	path, ok := pathfind.Solve(h.Grid)
	if !ok {
		h.Grid.Remove(target)
		if hadVault {
			h.Grid.Place(from, catalogs.Vault)
		}
		return nil, fault.ErrNoPath
	}
	return path, nil
}

// Solve runs the connectivity solver on the current grid.
func (h *House) Solve() (pathfind.Path, bool) {
	return pathfind.Solve(h.Grid)
}

// Abandon marks the house as given up by playerID. Abandoned houses keep
// their record but can no longer be entered.
func (h *House) Abandon(playerID string) {
	h.Abandoned = true
	h.AbandonedBy = playerID
}

func (h *House) Clone() *House {
	md := make(map[string]string, len(h.Metadata))
	for k, v := range h.Metadata {
		md[k] = v
	}
	return &House{
		ID:          h.ID,
		Metadata:    md,
		Abandoned:   h.Abandoned,
		AbandonedBy: h.AbandonedBy,
		Vault:       h.Vault.Clone(),
		Grid:        h.Grid.Clone(),
	}
}
