package house

import (
	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/logic/pathfind"
)

type EditResult struct {
	Cell     grid.Cell
	Placed   catalogs.Kind
	Replaced catalogs.Kind
	Path     pathfind.Path
}

// Build places one unit of k from the vault stock at c. A replaced wall goes
// back into stock. If the door loses its path to the vault the grid and the
// stock are restored exactly and ErrNoPath is returned.
func (h *House) Build(c grid.Cell, k catalogs.Kind) (EditResult, error) {
	if k == catalogs.Empty {
		return h.Clear(c)
	}
	if !grid.InBounds(c) {
		return EditResult{}, fault.ErrOutOfBounds
	}
	if grid.IsDoor(c) {
		return EditResult{}, fault.ErrDoorCell
	}
	if !k.Placeable() {
		return EditResult{}, fault.ErrNotPlaceable
	}
	if cur, _ := h.Grid.Get(c); cur == catalogs.Vault {
		return EditResult{}, fault.ErrVaultCell
	}

	stock := h.Vault.Clone()
	if !h.Vault.Decrement(k, 1) {
		return EditResult{}, fault.ErrNoMaterial
	}
	replaced, err := h.SetMaterial(c, k)
	if err != nil {
		h.Vault = stock
		return EditResult{}, err
	}
	h.Vault.Increment(replaced, 1)

	path, ok := pathfind.Solve(h.Grid)
	if !ok {
		h.Grid.Remove(c)
		h.Grid.Place(c, replaced)
		h.Vault = stock
		return EditResult{}, fault.ErrNoPath
	}
	return EditResult{Cell: c, Placed: k, Replaced: replaced, Path: path}, nil
}

// Clear empties c and refunds whatever stood there. Removing a wall can only
// open paths, so reachability is never a reason to fail.
func (h *House) Clear(c grid.Cell) (EditResult, error) {
	replaced, err := h.SetMaterial(c, catalogs.Empty)
	if err != nil {
		return EditResult{}, err
	}
	h.Vault.Increment(replaced, 1)
	path, _ := pathfind.Solve(h.Grid)
	return EditResult{Cell: c, Placed: catalogs.Empty, Replaced: replaced, Path: path}, nil
}

type Trade struct {
	Kind     catalogs.Kind
	Quantity int
	Price    int
	Total    int
}

// Purchase buys qty units of k into the vault stock. maxQty bounds a single
// order.
func (h *House) Purchase(k catalogs.Kind, qty, maxQty int) (Trade, error) {
	if qty < 1 || qty > maxQty {
		return Trade{}, fault.ErrBadQuantity
	}
	m := catalogs.Lookup(k)
	if !m.Purchasable || !k.Stockable() {
		return Trade{}, fault.ErrNotForSale
	}
	total := m.BuyPrice * qty
	if total > h.Vault.Dollars {
		return Trade{}, fault.ErrNoFunds
	}
	h.Vault.Dollars -= total
	h.Vault.Increment(k, qty)
	return Trade{Kind: k, Quantity: qty, Price: m.BuyPrice, Total: total}, nil
}

// Sell converts qty units of stock back into dollars at the sell price.
func (h *House) Sell(k catalogs.Kind, qty, maxQty int) (Trade, error) {
	if qty < 1 || qty > maxQty {
		return Trade{}, fault.ErrBadQuantity
	}
	m := catalogs.Lookup(k)
	if !m.Sellable || !k.Stockable() {
		return Trade{}, fault.ErrNotForSale
	}
	if h.Vault.Count(k) < qty {
		return Trade{}, fault.ErrNoMaterial
	}
	total := m.SellPrice * qty
	h.Vault.Decrement(k, qty)
	h.Vault.Dollars += total
	return Trade{Kind: k, Quantity: qty, Price: m.SellPrice, Total: total}, nil
}
