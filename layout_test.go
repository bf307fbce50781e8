package talc

import "testing"

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name        string
		size, align uintptr
		wantOK      bool
	}{
		{"ordinary", 64, 8, true},
		{"zero size", 0, 8, false},
		{"non-pow2 align", 64, 3, false},
		{"zero align", 64, 0, false},
		{"align one", 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := NewLayout(tt.size, tt.align)
			if ok != tt.wantOK {
				t.Fatalf("NewLayout(%d, %d) ok = %v, want %v", tt.size, tt.align, ok, tt.wantOK)
			}
			if ok && (l.Size != tt.size || l.Align != tt.align) {
				t.Errorf("NewLayout(%d, %d) = %+v", tt.size, tt.align, l)
			}
		})
	}
}

func TestLayoutOfPanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("LayoutOf(0, 8) did not panic")
		}
	}()
	LayoutOf(0, 8)
}
