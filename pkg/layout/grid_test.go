package layout

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/menta2k/claimprint/pkg/types"
)

func makeReceipts(n int) []types.Receipt {
	receipts := make([]types.Receipt, n)
	for i := range receipts {
		receipts[i] = types.Receipt{
			ID:           fmt.Sprintf("r%02d", i),
			CroppedImage: []byte{0xff, 0xd8},
			Amount:       float64(i + 1),
			Category:     "Misc",
		}
	}
	return receipts
}

func pageSizes(pages []Page) []int {
	sizes := make([]int, len(pages))
	for i, p := range pages {
		sizes[i] = len(p.Cells)
	}
	return sizes
}

func TestPaginateSizes(t *testing.T) {
	cfg := DefaultGridConfig()
	tests := []struct {
		n    int
		want []int
	}{
		{0, []int{0}},
		{1, []int{1}},
		{6, []int{6}},
		{7, []int{6, 1}},
		{18, []int{6, 12}},
		{20, []int{6, 12, 2}},
		{31, []int{6, 12, 12, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d receipts", tt.n), func(t *testing.T) {
			got := pageSizes(Paginate(makeReceipts(tt.n), cfg))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected page sizes %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPaginateOrderAndDeterminism(t *testing.T) {
	receipts := makeReceipts(20)
	cfg := DefaultGridConfig()

	first := Paginate(receipts, cfg)
	second := Paginate(receipts, cfg)
	if !reflect.DeepEqual(first, second) {
		t.Error("Paginate is not deterministic")
	}

	i := 0
	for _, page := range first {
		for _, cell := range page.Cells {
			if cell.Receipt.ID != receipts[i].ID {
				t.Fatalf("Expected %s at position %d, got %s", receipts[i].ID, i, cell.Receipt.ID)
			}
			i++
		}
	}
	if i != 20 {
		t.Errorf("Expected 20 placed receipts, got %d", i)
	}

	if !first[0].ClaimForm || first[1].ClaimForm {
		t.Error("Only the first page should carry the claim form")
	}
	if first[2].Index != 2 || first[2].Number() != 3 {
		t.Errorf("Unexpected index/number %d/%d", first[2].Index, first[2].Number())
	}
}

func TestPaginateSkipsReceiptsWithoutImages(t *testing.T) {
	receipts := makeReceipts(8)
	receipts[0].CroppedImage = nil
	receipts[3].CroppedImage = nil
	receipts[3].Image = []byte{1}

	pages := Paginate(receipts, DefaultGridConfig())
	if got := pageSizes(pages); !reflect.DeepEqual(got, []int{6, 1}) {
		t.Errorf("Expected [6 1], got %v", got)
	}
	if pages[0].Cells[0].Receipt.ID != "r01" {
		t.Errorf("Expected r01 first, got %s", pages[0].Cells[0].Receipt.ID)
	}
}

func TestPaginateCellGrid(t *testing.T) {
	cfg := DefaultGridConfig()
	pages := Paginate(makeReceipts(18), cfg)

	first := pages[0].Cells
	if first[0].Row != 0 || first[2].Col != 2 || first[3].Row != 1 || first[3].Col != 0 {
		t.Error("Expected row-major placement in 3 columns")
	}
	if first[0].Rect.Y < cfg.FormHeight {
		t.Errorf("First page cells must sit below the claim form, got y=%f", first[0].Rect.Y)
	}

	for _, page := range pages {
		w, h := page.Cells[0].Rect.W, page.Cells[0].Rect.H
		for _, c := range page.Cells {
			if c.Rect.W != w || c.Rect.H != h {
				t.Errorf("Page %d: cells are not uniform", page.Index)
			}
			if !c.Rect.Within(cfg.Page.Size()) {
				t.Errorf("Page %d: cell %+v leaves the page", page.Index, c.Rect)
			}
		}
	}

	last := pages[1].Cells[11]
	if last.Row != 3 || last.Col != 2 {
		t.Errorf("Expected 12th cell at row 3 col 2, got %d/%d", last.Row, last.Col)
	}
	if got := last.Rect.Bottom(); got > cfg.Page.Height-cfg.Margin+1e-9 {
		t.Errorf("Last row ends at %f, below bottom margin", got)
	}
}

func TestPaginateCustomCapacities(t *testing.T) {
	cfg := DefaultGridConfig()
	cfg.FirstPageCapacity = 2
	cfg.FullPageCapacity = 4
	cfg.Columns = 2

	got := pageSizes(Paginate(makeReceipts(9), cfg))
	if !reflect.DeepEqual(got, []int{2, 4, 3}) {
		t.Errorf("Expected [2 4 3], got %v", got)
	}
}

func TestBuildPlan(t *testing.T) {
	receipts := makeReceipts(7)
	plan := BuildPlan(ClaimHeader{Name: "Aina"}, []string{"Misc"}, receipts, DefaultGridConfig())

	if plan.Page != A4 {
		t.Errorf("Expected A4 plan, got %+v", plan.Page)
	}
	if len(plan.Pages) != 2 {
		t.Errorf("Expected 2 pages, got %d", len(plan.Pages))
	}
	if plan.Form.Total != 28 {
		t.Errorf("Expected total 28, got %f", plan.Form.Total)
	}
}
