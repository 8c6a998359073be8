package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"housevault/internal/sim/fault"
)

// Kind identifies a material. The zero value is Empty so an unset grid cell
// reads as open floor.
type Kind uint8

const (
	Empty Kind = iota
	Vault
	WoodWall
	SteelWall
	ConcreteWall
	// HouseWall is synthetic: it only appears in renders for cells outside
	// the 31x31 grid and can never be placed or traded.
	HouseWall
)

// Material is the immutable attribute record of a Kind.
type Material struct {
	Kind        Kind   `json:"-"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Passable    bool   `json:"passable"`
	Purchasable bool   `json:"purchasable"`
	Sellable    bool   `json:"sellable"`
	BuyPrice    int    `json:"buy_price"`
	SellPrice   int    `json:"sell_price"`
	Toughness   int    `json:"toughness"`
	Conductive  bool   `json:"conductive"`
}

var table = [...]Material{
	Empty:        {Kind: Empty, ID: "Air", Name: "Air", Passable: true},
	Vault:        {Kind: Vault, ID: "Vault", Name: "Vault", Toughness: 10},
	WoodWall:     {Kind: WoodWall, ID: "Wooden_Wall", Name: "Wooden Wall", Purchasable: true, Sellable: true, BuyPrice: 10, SellPrice: 5, Toughness: 1},
	SteelWall:    {Kind: SteelWall, ID: "Steel_Wall", Name: "Steel Wall", Purchasable: true, Sellable: true, BuyPrice: 50, SellPrice: 25, Toughness: 5, Conductive: true},
	ConcreteWall: {Kind: ConcreteWall, ID: "Concrete_Wall", Name: "Concrete Wall", Purchasable: true, Sellable: true, BuyPrice: 120, SellPrice: 60, Toughness: 8},
	HouseWall:    {Kind: HouseWall, ID: "House_Wall", Name: "House Wall"},
}

var (
	byName        map[string]Kind
	palette       []string
	paletteDigest string
	defsDigest    string
)

func init() {
	byName = make(map[string]Kind, len(table)*2)
	palette = make([]string, 0, len(table))
	for _, m := range table {
		byName[m.ID] = m.Kind
		byName[m.Name] = m.Kind
		palette = append(palette, m.ID)
	}
	palJSON, _ := json.Marshal(palette)
	paletteDigest = sha256Hex(palJSON)
	defsJSON, _ := json.Marshal(table)
	defsDigest = sha256Hex(defsJSON)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the attribute record for k. Unknown kinds report as an
// impassable HouseWall.
func Lookup(k Kind) Material {
	if int(k) >= len(table) {
		return table[HouseWall]
	}
	return table[k]
}

func (k Kind) String() string { return Lookup(k).ID }

func (k Kind) Passable() bool { return Lookup(k).Passable }

// Placeable reports whether k may be stored in a house grid by an edit.
func (k Kind) Placeable() bool {
	switch k {
	case WoodWall, SteelWall, ConcreteWall:
		return true
	}
	return false
}

// Stockable reports whether k can be held in a vault inventory.
func (k Kind) Stockable() bool { return k.Placeable() }

// Parse resolves a wire id ("Wooden_Wall") or display name ("Wooden Wall").
// Unrecognized names are an error, never a silent Air.
func Parse(name string) (Kind, error) {
	name = strings.TrimSpace(name)
	if k, ok := byName[name]; ok {
		return k, nil
	}
	return 0, fault.ErrUnknownMaterial
}

// All returns the attribute table in palette order.
func All() []Material {
	out := make([]Material, len(table))
	copy(out, table[:])
	return out
}

func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette)
	return out
}

func PaletteDigest() string { return paletteDigest }

func DefsDigest() string { return defsDigest }
