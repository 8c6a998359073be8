package house

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"housevault/internal/sim/catalogs"
	"housevault/internal/sim/fault"
	"housevault/internal/sim/grid"
	"housevault/internal/sim/tuning"
)

func fresh() *House {
	return New("h1", tuning.Defaults().House)
}

func TestFreshHouseLayout(t *testing.T) {
	h := fresh()
	if k, _ := h.MaterialAt(grid.VaultStart); k != catalogs.Vault {
		t.Fatalf("vault at %v = %v", grid.VaultStart, k)
	}
	for x := 2; x <= 6; x++ {
		for _, y := range []int{14, 16} {
			if k, _ := h.MaterialAt(grid.Cell{X: x, Y: y}); k != catalogs.WoodWall {
				t.Fatalf("(%d,%d)=%v want wood wall", x, y, k)
			}
		}
	}
	if h.Vault.Dollars != 100 || h.Vault.Count(catalogs.WoodWall) != 10 {
		t.Fatalf("vault contents %+v", h.Vault)
	}
	if _, ok := h.Solve(); !ok {
		t.Fatalf("fresh house must be connected")
	}
}

func TestMoveVaultScenario(t *testing.T) {
	h := fresh()
	if _, err := h.SetMaterial(grid.Cell{X: 5, Y: 15}, catalogs.WoodWall); err != nil {
		t.Fatalf("SetMaterial: %v", err)
	}
	if _, err := h.MoveVault(grid.Cell{X: 5, Y: 15}); !errors.Is(err, fault.ErrTargetOccupied) {
		t.Fatalf("move onto wall err=%v", err)
	}
	if k, _ := h.MaterialAt(grid.VaultStart); k != catalogs.Vault {
		t.Fatalf("failed move must not disturb the vault")
	}

	h = fresh()
	path, err := h.MoveVault(grid.Cell{X: 10, Y: 10})
	if err != nil {
		t.Fatalf("MoveVault: %v", err)
	}
	if len(path) == 0 || h.Grid.VaultCount() != 1 {
		t.Fatalf("path=%v vaults=%d", path, h.Grid.VaultCount())
	}
	if k, _ := h.MaterialAt(grid.VaultStart); k != catalogs.Empty {
		t.Fatalf("old vault cell = %v", k)
	}
	if k, _ := h.MaterialAt(grid.Cell{X: 10, Y: 10}); k != catalogs.Vault {
		t.Fatalf("new vault cell = %v", k)
	}
}

func TestMoveVaultRollsBackWhenUnreachable(t *testing.T) {
	h := fresh()
	target := grid.Cell{X: 20, Y: 20}
	for _, c := range []grid.Cell{{X: 19, Y: 20}, {X: 21, Y: 20}, {X: 20, Y: 19}, {X: 20, Y: 21}} {
		if _, err := h.SetMaterial(c, catalogs.SteelWall); err != nil {
			t.Fatalf("SetMaterial %v: %v", c, err)
		}
	}
	before := h.ToRecord()
	if _, err := h.MoveVault(target); !errors.Is(err, fault.ErrNoPath) {
		t.Fatalf("err=%v want ErrNoPath", err)
	}
	after := h.ToRecord()
	a, _ := json.Marshal(before)
	b, _ := json.Marshal(after)
	if string(a) != string(b) {
		t.Fatalf("grid changed after rejected move:\n%s\n%s", a, b)
	}
}

func TestMoveVaultRejectsDoorAndBounds(t *testing.T) {
	h := fresh()
	if _, err := h.MoveVault(grid.Door); !errors.Is(err, fault.ErrDoorCell) {
		t.Fatalf("door err=%v", err)
	}
	if _, err := h.MoveVault(grid.Cell{X: 31, Y: 0}); !errors.Is(err, fault.ErrOutOfBounds) {
		t.Fatalf("bounds err=%v", err)
	}
}

func TestSetMaterialGuards(t *testing.T) {
	h := fresh()
	if _, err := h.SetMaterial(grid.VaultStart, catalogs.WoodWall); !errors.Is(err, fault.ErrVaultCell) {
		t.Fatalf("build over vault err=%v", err)
	}
	if _, err := h.SetMaterial(grid.Cell{X: 1, Y: 1}, catalogs.Vault); !errors.Is(err, fault.ErrNotPlaceable) {
		t.Fatalf("place vault err=%v", err)
	}
	if _, err := h.SetMaterial(grid.Cell{X: 1, Y: 1}, catalogs.HouseWall); !errors.Is(err, fault.ErrNotPlaceable) {
		t.Fatalf("place house wall err=%v", err)
	}
	if _, err := h.SetMaterial(grid.Door, catalogs.WoodWall); !errors.Is(err, fault.ErrDoorCell) {
		t.Fatalf("door err=%v", err)
	}
	prev, err := h.SetMaterial(grid.Cell{X: 2, Y: 14}, catalogs.ConcreteWall)
	if err != nil || prev != catalogs.WoodWall {
		t.Fatalf("replace = %v, %v", prev, err)
	}
	if h.IsEditAllowedLocation(grid.Door) || !h.IsEditAllowedLocation(grid.Cell{X: 1, Y: 15}) {
		t.Fatalf("edit location rules")
	}
}

func TestBuildDisconnectingIsAllOrNothing(t *testing.T) {
	h := fresh()
	// Box the vault on two sides; the third is the last opening.
	h.Vault.Increment(catalogs.SteelWall, 3)
	for _, c := range []grid.Cell{{X: 30, Y: 14}, {X: 30, Y: 16}} {
		if _, err := h.Build(c, catalogs.SteelWall); err != nil {
			t.Fatalf("Build %v: %v", c, err)
		}
	}
	h.Grid.Place(grid.Cell{X: 28, Y: 15}, catalogs.WoodWall)

	stockBefore := h.Vault.Clone()
	gridBefore := h.Grid.Entries()
	_, err := h.Build(grid.Cell{X: 29, Y: 15}, catalogs.SteelWall)
	if !errors.Is(err, fault.ErrNoPath) {
		t.Fatalf("err=%v want ErrNoPath", err)
	}
	if h.Vault.Count(catalogs.SteelWall) != stockBefore.Count(catalogs.SteelWall) {
		t.Fatalf("stock changed: %d -> %d", stockBefore.Count(catalogs.SteelWall), h.Vault.Count(catalogs.SteelWall))
	}
	gridAfter := h.Grid.Entries()
	if len(gridAfter) != len(gridBefore) {
		t.Fatalf("grid size changed")
	}
	for i := range gridBefore {
		if gridBefore[i] != gridAfter[i] {
			t.Fatalf("grid entry %d changed: %v -> %v", i, gridBefore[i], gridAfter[i])
		}
	}
}

func TestBuildReplacingRefundsAndConsumes(t *testing.T) {
	h := fresh()
	h.Vault.Increment(catalogs.SteelWall, 1)
	res, err := h.Build(grid.Cell{X: 2, Y: 14}, catalogs.SteelWall)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Replaced != catalogs.WoodWall || len(res.Path) == 0 {
		t.Fatalf("result %+v", res)
	}
	if h.Vault.Count(catalogs.SteelWall) != 0 || h.Vault.Count(catalogs.WoodWall) != 11 {
		t.Fatalf("stock %+v", h.Vault.Materials)
	}
	if _, err := h.Build(grid.Cell{X: 3, Y: 3}, catalogs.SteelWall); !errors.Is(err, fault.ErrNoMaterial) {
		t.Fatalf("build without stock err=%v", err)
	}
}

func TestClearNeverFailsOnReachability(t *testing.T) {
	h := fresh()
	for _, c := range []grid.Cell{{X: 29, Y: 15}, {X: 30, Y: 14}, {X: 30, Y: 16}} {
		h.Grid.Place(c, catalogs.WoodWall)
	}
	if _, ok := h.Solve(); ok {
		t.Fatalf("setup should be disconnected")
	}
	res, err := h.Clear(grid.Cell{X: 30, Y: 14})
	if err != nil || res.Replaced != catalogs.WoodWall {
		t.Fatalf("Clear=%+v,%v", res, err)
	}
	if len(res.Path) == 0 {
		t.Fatalf("clearing the wall should reconnect")
	}
	if h.Vault.Count(catalogs.WoodWall) != 11 {
		t.Fatalf("refund missing: %d", h.Vault.Count(catalogs.WoodWall))
	}
	if _, err := h.Clear(grid.Cell{X: 12, Y: 12}); err != nil {
		t.Fatalf("clearing empty cell: %v", err)
	}
}

func TestVaultIncrementDecrement(t *testing.T) {
	v := NewVaultContents(0, 0)
	if v.Decrement(catalogs.SteelWall, 1) {
		t.Fatalf("decrementing zero must fail")
	}
	if v.Count(catalogs.SteelWall) != 0 {
		t.Fatalf("count went negative")
	}
	v.Increment(catalogs.SteelWall, 4)
	if !v.Decrement(catalogs.SteelWall, 4) || v.Count(catalogs.SteelWall) != 0 {
		t.Fatalf("round trip failed: %d", v.Count(catalogs.SteelWall))
	}
	v.Increment(catalogs.SteelWall, 2)
	if !v.Decrement(catalogs.SteelWall, 5) || v.Count(catalogs.SteelWall) != 0 {
		t.Fatalf("over-decrement should clamp to zero")
	}
	v.Increment(catalogs.Vault, 1)
	if v.Count(catalogs.Vault) != 0 {
		t.Fatalf("vault is not stockable")
	}
}

func TestShop(t *testing.T) {
	h := fresh()
	tr, err := h.Purchase(catalogs.SteelWall, 2, 1000)
	if err != nil || tr.Total != 100 {
		t.Fatalf("Purchase=%+v,%v", tr, err)
	}
	if h.Vault.Dollars != 0 || h.Vault.Count(catalogs.SteelWall) != 2 {
		t.Fatalf("after purchase %+v", h.Vault)
	}
	if _, err := h.Purchase(catalogs.WoodWall, 1, 1000); !errors.Is(err, fault.ErrNoFunds) {
		t.Fatalf("no funds err=%v", err)
	}
	if _, err := h.Purchase(catalogs.Vault, 1, 1000); !errors.Is(err, fault.ErrNotForSale) {
		t.Fatalf("vault purchase err=%v", err)
	}
	if _, err := h.Purchase(catalogs.WoodWall, 1001, 1000); !errors.Is(err, fault.ErrBadQuantity) {
		t.Fatalf("quantity err=%v", err)
	}
	if _, err := h.Sell(catalogs.SteelWall, 3, 1000); !errors.Is(err, fault.ErrNoMaterial) {
		t.Fatalf("oversell err=%v", err)
	}
	tr, err = h.Sell(catalogs.SteelWall, 2, 1000)
	if err != nil || tr.Total != 50 || h.Vault.Dollars != 50 {
		t.Fatalf("Sell=%+v,%v dollars=%d", tr, err, h.Vault.Dollars)
	}
}

func TestRecordRoundTripAndValidation(t *testing.T) {
	h := fresh()
	h.Metadata["name"] = "cottage"
	h.Abandon("p1")
	raw, err := json.Marshal(h.ToRecord())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back, err := FromRecord(r)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if !back.Abandoned || back.AbandonedBy != "p1" || back.Metadata["name"] != "cottage" {
		t.Fatalf("fields lost: %+v", back)
	}
	if back.Grid.Len() != h.Grid.Len() || back.Vault.Count(catalogs.WoodWall) != 10 {
		t.Fatalf("grid or vault lost")
	}

	bad := h.ToRecord()
	bad.Construction = append(bad.Construction, ConstructionRecord{MaterialType: "Lava", Location: [2]int{1, 1}})
	if _, err := FromRecord(bad); !errors.Is(err, fault.ErrUnknownMaterial) {
		t.Fatalf("unknown material err=%v", err)
	}

	bad = h.ToRecord()
	bad.Construction = append(bad.Construction, ConstructionRecord{MaterialType: "Vault", Location: [2]int{1, 1}})
	if _, err := FromRecord(bad); err == nil {
		t.Fatalf("two vaults accepted")
	}

	bad = h.ToRecord()
	bad.Construction = append(bad.Construction, ConstructionRecord{MaterialType: "Wooden_Wall", Location: [2]int{2, 14}})
	if _, err := FromRecord(bad); err == nil {
		t.Fatalf("duplicate cell accepted")
	}

	bad = h.ToRecord()
	bad.Construction = append(bad.Construction, ConstructionRecord{MaterialType: "Steel_Wall", Location: [2]int{grid.Door.X, grid.Door.Y}})
	if _, err := FromRecord(bad); err == nil || !strings.Contains(err.Error(), "blocks the door") {
		t.Fatalf("walled door err=%v", err)
	}

	bad = h.ToRecord()
	bad.Construction = append(bad.Construction, ConstructionRecord{MaterialType: "Wooden_Wall", Location: [2]int{40, 1}})
	if _, err := FromRecord(bad); err == nil {
		t.Fatalf("out of bounds accepted")
	}
}
