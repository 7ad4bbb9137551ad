package services

import (
	"testing"
	"time"
)

func TestHolidayService_IsWorkday(t *testing.T) {
	s := NewHolidayService()
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		at        time.Time
		countries []string
		want      bool
	}{
		{"plain weekday", day(2026, 3, 4), nil, true},
		{"plain saturday", day(2026, 3, 7), nil, false},
		{"us independence day", day(2026, 7, 3), []string{"US"}, false},
		{"us ordinary day", day(2026, 7, 8), []string{"us"}, true},
		{"christmas in gb", day(2025, 12, 25), []string{"GB"}, false},
		{"any country holiday blocks", day(2025, 12, 25), []string{"JP", "GB"}, false},
		{"unknown country uses weekdays", day(2026, 3, 4), []string{"XX"}, true},
		{"china national day", day(2024, 10, 1), []string{"CN"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsWorkday(tt.at, tt.countries...); got != tt.want {
				t.Errorf("IsWorkday(%s, %v) = %v, want %v", tt.at.Format("2006-01-02"), tt.countries, got, tt.want)
			}
		})
	}
}

func TestHolidayService_Countries(t *testing.T) {
	countries := NewHolidayService().Countries()
	if len(countries) != 13 {
		t.Fatalf("expected 13 countries, got %d", len(countries))
	}
	for i := 1; i < len(countries); i++ {
		if countries[i-1].Code >= countries[i].Code {
			t.Errorf("countries not sorted at %d: %s >= %s", i, countries[i-1].Code, countries[i].Code)
		}
	}
}
