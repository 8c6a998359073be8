// Package render produces the 8x8 view a player gets of the house around
// them. The player always sits at local (3,3).
package render

import (
	"encoding/json"

	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/grid"
)

const (
	Window = 8
	Offset = 3

	FormatCompressed = "compressed"
	FormatExplicit   = "explicit"
)

const (
	SymEmpty  = '0'
	SymWall   = '1'
	SymVault  = 'v'
	SymPlayer = 'p'
	SymDoor   = 'd'
	SymOut    = 'x'
)

// Source is the read side of a house grid.
type Source interface {
	MaterialAt(c grid.Cell) (catalogs.Kind, error)
}

type Class uint8

const (
	ClassMaterial Class = iota
	ClassPlayer
	ClassOutOfBounds
	ClassDoor
)

type Cell struct {
	Local    grid.Cell
	Absolute grid.Cell
	Class    Class
	Kind     catalogs.Kind
	Passable bool
}

// View is the classified 8x8 window, indexed [localX][localY].
type View struct {
	Origin grid.Cell
	Cells  [Window][Window]Cell
}

func Surroundings(src Source, pos grid.Cell) View {
	v := View{Origin: grid.Cell{X: pos.X - Offset, Y: pos.Y - Offset}}
	for lx := 0; lx < Window; lx++ {
		for ly := 0; ly < Window; ly++ {
			abs := grid.Cell{X: v.Origin.X + lx, Y: v.Origin.Y + ly}
			c := Cell{Local: grid.Cell{X: lx, Y: ly}, Absolute: abs}
			switch {
			case lx == Offset && ly == Offset:
				c.Class = ClassPlayer
			case !grid.InBounds(abs):
				c.Class = ClassOutOfBounds
				c.Kind = catalogs.HouseWall
			case grid.IsDoor(abs):
				c.Class = ClassDoor
				c.Passable = true
			default:
				k, err := src.MaterialAt(abs)
				if err != nil {
					c.Class = ClassOutOfBounds
					c.Kind = catalogs.HouseWall
					break
				}
				c.Kind = k
				c.Passable = k.Passable()
			}
			v.Cells[lx][ly] = c
		}
	}
	return v
}

// Compressed encodes the window as 64 symbols, index localX*8+localY.
func (v View) Compressed() string {
	b := make([]byte, 0, Window*Window)
	for lx := 0; lx < Window; lx++ {
		for ly := 0; ly < Window; ly++ {
			b = append(b, symbol(v.Cells[lx][ly]))
		}
	}
	return string(b)
}

func symbol(c Cell) byte {
	switch c.Class {
	case ClassPlayer:
		return SymPlayer
	case ClassOutOfBounds:
		return SymOut
	case ClassDoor:
		return SymDoor
	}
	switch c.Kind {
	case catalogs.Empty:
		return SymEmpty
	case catalogs.Vault:
		return SymVault
	default:
		return SymWall
	}
}

type Record struct {
	MaterialType     string `json:"material_type"`
	LocalLocation    [2]int `json:"local_location"`
	AbsoluteLocation [2]int `json:"absolute_location"`
	Passable         bool   `json:"passable"`
}

// Explicit lists every cell that isn't plain Empty floor.
func (v View) Explicit() []Record {
	out := make([]Record, 0, 8)
	for lx := 0; lx < Window; lx++ {
		for ly := 0; ly < Window; ly++ {
			c := v.Cells[lx][ly]
			var name string
			switch c.Class {
			case ClassPlayer:
				name = "player"
			case ClassOutOfBounds:
				name = catalogs.HouseWall.String()
			case ClassDoor:
				name = "door"
			default:
				if c.Kind == catalogs.Empty {
					continue
				}
				name = c.Kind.String()
			}
			out = append(out, Record{
				MaterialType:     name,
				LocalLocation:    [2]int{c.Local.X, c.Local.Y},
				AbsoluteLocation: [2]int{c.Absolute.X, c.Absolute.Y},
				Passable:         c.Passable,
			})
		}
	}
	return out
}

type Rendered struct {
	Format       string      `json:"format"`
	Construction interface{} `json:"construction"`
}

// Render returns the explicit form, or when compressed is requested
// whichever of the two encodes to fewer JSON bytes.
func Render(src Source, pos grid.Cell, compressed bool) Rendered {
	v := Surroundings(src, pos)
	explicit := v.Explicit()
	if !compressed {
		return Rendered{Format: FormatExplicit, Construction: explicit}
	}
	packed := v.Compressed()
	pb, _ := json.Marshal(packed)
	eb, _ := json.Marshal(explicit)
	if len(eb) < len(pb) {
		return Rendered{Format: FormatExplicit, Construction: explicit}
	}
	return Rendered{Format: FormatCompressed, Construction: packed}
}
