package services

import (
	"sort"
	"strings"
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/us"
)

// countryChina is resolved through the lunar calendar, which also knows the
// adjusted working weekends.
const countryChina = "CN"

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HolidayService decides whether the digest goes out on a given day.
type HolidayService struct {
	calendars map[string]*cal.BusinessCalendar
}

func NewHolidayService() *HolidayService {
	s := &HolidayService{calendars: make(map[string]*cal.BusinessCalendar)}
	s.add("US", "United States", us.Holidays...)
	s.add("GB", "United Kingdom", gb.Holidays...)
	s.add("IE", "Ireland", ie.Holidays...)
	s.add("CA", "Canada", ca.Holidays...)
	s.add("AU", "Australia", au.HolidaysNSW...)
	s.add("NZ", "New Zealand", nz.Holidays...)
	s.add("DE", "Germany", de.Holidays...)
	s.add("FR", "France", fr.Holidays...)
	s.add("IT", "Italy", it.Holidays...)
	s.add("ES", "Spain", es.Holidays...)
	s.add("NL", "Netherlands", nl.Holidays...)
	s.add("JP", "Japan", jp.Holidays...)
	return s
}

func (s *HolidayService) add(code, name string, holidays ...*cal.Holiday) {
	c := cal.NewBusinessCalendar()
	c.Name = name
	c.AddHoliday(holidays...)
	s.calendars[code] = c
}

// IsWorkday reports whether t is a working day in every listed country.
// Unknown codes and an empty list fall back to Monday to Friday.
func (s *HolidayService) IsWorkday(t time.Time, countries ...string) bool {
	if len(countries) == 0 {
		return !cal.IsWeekend(t)
	}
	for _, code := range countries {
		if !s.isWorkdayIn(t, strings.ToUpper(strings.TrimSpace(code))) {
			return false
		}
	}
	return true
}

func (s *HolidayService) isWorkdayIn(t time.Time, code string) bool {
	if code == countryChina {
		solar := calendar.NewSolarFromDate(t)
		if h := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay()); h != nil {
			return h.IsWork()
		}
		return !cal.IsWeekend(t)
	}
	if c, ok := s.calendars[code]; ok {
		return c.IsWorkday(t)
	}
	return !cal.IsWeekend(t)
}

// Countries lists the supported country codes, sorted by code.
func (s *HolidayService) Countries() []CountryInfo {
	out := []CountryInfo{{Code: countryChina, Name: "China"}}
	for code, c := range s.calendars {
		out = append(out, CountryInfo{Code: code, Name: c.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
