package analytics

import (
	"strings"
	"testing"
)

func TestParamsResolve(t *testing.T) {
	opts := BuildOptions(baseRecords())

	tests := []struct {
		name    string
		params  Params
		check   func(t *testing.T, s Selection)
		wantErr string
	}{
		{
			name:   "no params gives defaults",
			params: Params{},
			check: func(t *testing.T, s Selection) {
				if s.Nights == nil || *s.Nights != 1 || s.Persons == nil || *s.Persons != 1 {
					t.Errorf("sel = %+v, want smallest nights and persons", s)
				}
			},
		},
		{
			name:   "full price domain is dropped",
			params: Params{Nights: "1", PriceMin: "80", PriceMax: "250"},
			check: func(t *testing.T, s Selection) {
				if s.Price != nil {
					t.Errorf("Price = %+v, want nil", s.Price)
				}
				if s.Persons != nil {
					t.Errorf("Persons = %v, want unset", *s.Persons)
				}
			},
		},
		{
			name:   "one sided price completed from domain",
			params: Params{PriceMin: "100"},
			check: func(t *testing.T, s Selection) {
				if s.Price == nil || *s.Price != (Range{Min: 100, Max: 250}) {
					t.Errorf("Price = %+v", s.Price)
				}
			},
		},
		{
			name:   "dates",
			params: Params{DateFrom: "2024-06-16"},
			check: func(t *testing.T, s Selection) {
				if s.Dates == nil || s.Dates.From.Day() != 16 || s.Dates.To.Day() != 17 {
					t.Errorf("Dates = %+v", s.Dates)
				}
			},
		},
		{
			name:   "hotels",
			params: Params{Hotels: []string{"A", "C"}},
			check: func(t *testing.T, s Selection) {
				if len(s.Hotels) != 2 {
					t.Errorf("Hotels = %v", s.Hotels)
				}
			},
		},
		{name: "zero nights", params: Params{Nights: "0"}, wantErr: "nights"},
		{name: "non numeric persons", params: Params{Persons: "two"}, wantErr: "persons"},
		{name: "negative price", params: Params{PriceMin: "-5"}, wantErr: "negative"},
		{name: "inverted price", params: Params{PriceMin: "200", PriceMax: "100"}, wantErr: "exceeds"},
		{name: "bad date", params: Params{DateTo: "16/06/2024"}, wantErr: "date_to"},
		{name: "inverted dates", params: Params{DateFrom: "2024-06-17", DateTo: "2024-06-15"}, wantErr: "after"},
		{name: "empty hotel", params: Params{Hotels: []string{""}}, wantErr: "hotel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := tt.params.Resolve(opts)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			tt.check(t, sel)
		})
	}
}
