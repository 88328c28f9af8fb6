package pagination

import "testing"

func TestPageRequest_Defaults(t *testing.T) {
	var p PageRequest
	p.Defaults()
	if p.Page != 1 || p.PageSize != 20 {
		t.Errorf("Defaults() = page %d size %d, want 1 and 20", p.Page, p.PageSize)
	}

	p = PageRequest{Page: 3, PageSize: 50}
	p.Defaults()
	if p.Offset() != 100 {
		t.Errorf("Offset() = %d, want 100", p.Offset())
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[string](nil, 2, 10, 21)
	if resp.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", resp.TotalPages)
	}
	if resp.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
}
