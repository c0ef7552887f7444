package models

import "testing"

func TestSearchParams_Validate(t *testing.T) {
	tests := []struct {
		name      string
		params    *SearchParams
		wantErr   bool
		wantLimit int
	}{
		{"empty query", &SearchParams{Query: ""}, true, 0},
		{"blank query", &SearchParams{Query: "   "}, true, 0},
		{"valid query", &SearchParams{Query: "bbq austin", Limit: 5}, false, 5},
		{"sets default limit", &SearchParams{Query: "tacos", Limit: 0}, false, 10},
		{"negative limit defaults", &SearchParams{Query: "tacos", Limit: -3}, false, 10},
		{"caps limit at 20", &SearchParams{Query: "tacos", Limit: 50}, false, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.params.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.params.Limit, tt.wantLimit)
			}
		})
	}
}
