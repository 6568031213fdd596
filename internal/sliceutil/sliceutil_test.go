package sliceutil

import (
	"slices"
	"testing"
)

func TestUnique(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		items []string
		want  []string
	}{
		{"No duplicates", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"Preserve first occurrence", []string{"203.0.113.10", "localhost", "203.0.113.10", "127.0.0.1"}, []string{"203.0.113.10", "localhost", "127.0.0.1"}},
		{"All duplicates", []string{"x", "x", "x"}, []string{"x"}},
		{"Empty", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Unique(tt.items)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Unique(%v) = %v, want %v", tt.items, got, tt.want)
			}
		})
	}
}

func TestUnique_Nil(t *testing.T) {
	t.Parallel()
	if got := Unique[int](nil); got != nil {
		t.Errorf("Unique(nil) = %v, want nil", got)
	}
}

func TestFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  []string
	}{
		{"a.example.com", []string{"a.example.com"}},
		{" a , b ,c", []string{"a", "b", "c"}},
		{",,,", []string{}},
		{"", []string{}},
	}

	for _, tt := range tests {
		if got := Fields(tt.input, ","); !slices.Equal(got, tt.want) {
			t.Errorf("Fields(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
