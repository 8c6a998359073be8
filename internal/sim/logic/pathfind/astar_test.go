package pathfind

import (
	"testing"

	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/grid"
)

func freshGrid() *grid.Grid {
	g := grid.New()
	g.Place(grid.VaultStart, catalogs.Vault)
	for x := 2; x <= 6; x++ {
		g.Place(grid.Cell{X: x, Y: 14}, catalogs.WoodWall)
		g.Place(grid.Cell{X: x, Y: 16}, catalogs.WoodWall)
	}
	return g
}

func checkWalk(t *testing.T, g *grid.Grid, p Path) {
	t.Helper()
	if p[0] != grid.Door {
		t.Fatalf("path starts at %v", p[0])
	}
	v, _ := g.VaultCell()
	if p[len(p)-1] != v {
		t.Fatalf("path ends at %v want %v", p[len(p)-1], v)
	}
	for i := 1; i < len(p); i++ {
		if grid.Manhattan(p[i-1], p[i]) != 1 {
			t.Fatalf("non-adjacent step %v -> %v", p[i-1], p[i])
		}
		if i < len(p)-1 {
			k, _ := g.Get(p[i])
			if !k.Passable() {
				t.Fatalf("path crosses %v at %v", k, p[i])
			}
		}
	}
}

func TestFreshHouseIsShortest(t *testing.T) {
	g := freshGrid()
	p, ok := Solve(g)
	if !ok {
		t.Fatalf("fresh house should be connected")
	}
	checkWalk(t, g, p)
	if len(p) != 31 {
		t.Fatalf("len=%d want 31", len(p))
	}
}

func TestWalledVaultUnreachable(t *testing.T) {
	g := freshGrid()
	g.Place(grid.Cell{X: 29, Y: 15}, catalogs.WoodWall)
	g.Place(grid.Cell{X: 30, Y: 14}, catalogs.WoodWall)
	g.Place(grid.Cell{X: 30, Y: 16}, catalogs.WoodWall)
	if p, ok := Solve(g); ok {
		t.Fatalf("expected no path, got %v", p)
	}
	if got := Path(nil).LuckyNumbers(); got != "0" {
		t.Fatalf("lucky numbers for no path = %q", got)
	}
}

func TestDetourAroundWall(t *testing.T) {
	g := grid.New()
	g.Place(grid.Cell{X: 4, Y: 15}, catalogs.Vault)
	for y := 10; y <= 20; y++ {
		g.Place(grid.Cell{X: 2, Y: y}, catalogs.SteelWall)
	}
	p, ok := Solve(g)
	if !ok {
		t.Fatalf("expected detour")
	}
	checkWalk(t, g, p)
	// Manhattan distance plus six cells out and six back around the column.
	if len(p)-1 != 4+2*6 {
		t.Fatalf("steps=%d", len(p)-1)
	}
}

func TestDeterministic(t *testing.T) {
	g := freshGrid()
	g.Place(grid.Cell{X: 15, Y: 15}, catalogs.ConcreteWall)
	a, _ := Solve(g)
	for i := 0; i < 5; i++ {
		b, _ := Solve(g)
		if a.LuckyNumbers() != b.LuckyNumbers() {
			t.Fatalf("path changed between runs")
		}
	}
}

func TestDoorIsVault(t *testing.T) {
	g := grid.New()
	g.Place(grid.Door, catalogs.Vault)
	p, ok := Solve(g)
	if !ok || len(p) != 1 || p.LuckyNumbers() != "0 15" {
		t.Fatalf("trivial path: %v %v", p, ok)
	}
}

func TestNoVault(t *testing.T) {
	if _, ok := Solve(grid.New()); ok {
		t.Fatalf("grid without vault must not be connected")
	}
}

func TestLuckyNumbersFormat(t *testing.T) {
	p := Path{{X: 0, Y: 15}, {X: 1, Y: 15}, {X: 1, Y: 16}}
	if got := p.LuckyNumbers(); got != "0 15 1 15 1 16" {
		t.Fatalf("got %q", got)
	}
}
