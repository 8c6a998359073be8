package house

import "housevault/internal/sim/catalogs"

// VaultContents is the money and material stock held in a house vault.
// Counts never go negative.
type VaultContents struct {
	Dollars   int
	Materials map[catalogs.Kind]int
}

func NewVaultContents(dollars, woodWalls int) VaultContents {
	v := VaultContents{Dollars: dollars, Materials: make(map[catalogs.Kind]int, 3)}
	for _, m := range catalogs.All() {
		if m.Kind.Stockable() {
			v.Materials[m.Kind] = 0
		}
	}
	v.Materials[catalogs.WoodWall] = woodWalls
	return v
}

func (v *VaultContents) Count(k catalogs.Kind) int {
	return v.Materials[k]
}

// Increment adds n of k. Non-positive n and non-stockable kinds are ignored.
func (v *VaultContents) Increment(k catalogs.Kind, n int) {
	if n <= 0 || !k.Stockable() {
		return
	}
	if v.Materials == nil {
		v.Materials = make(map[catalogs.Kind]int, 3)
	}
	v.Materials[k] += n
}

// Decrement removes up to n of k, clamping at zero. It reports false only
// when nothing was held to begin with.
func (v *VaultContents) Decrement(k catalogs.Kind, n int) bool {
	have := v.Materials[k]
	if have <= 0 {
		return false
	}
	if n > have {
		n = have
	}
	v.Materials[k] = have - n
	return true
}

func (v VaultContents) Clone() VaultContents {
	cp := VaultContents{Dollars: v.Dollars, Materials: make(map[catalogs.Kind]int, len(v.Materials))}
	for k, n := range v.Materials {
		cp.Materials[k] = n
	}
	return cp
}

// TakeDollars empties the dollar balance and returns what was there.
func (v *VaultContents) TakeDollars() int {
	d := v.Dollars
	v.Dollars = 0
	return d
}
