// Package timezones carries the curated zone list offered by the schedule
// picker and helpers to check and describe IANA zone names.
package timezones

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo
)

// Zone is one picker entry.  Offset is the standard UTC offset in hours.
type Zone struct {
	Value  string  `json:"value"`
	Label  string  `json:"label"`
	Offset float64 `json:"offset"`
}

// All is ordered by offset, west to east.
var All = []Zone{
	{Value: "Pacific/Midway", Label: "Midway Island (GMT-11:00)", Offset: -11},
	{Value: "Pacific/Honolulu", Label: "Hawaii (GMT-10:00)", Offset: -10},
	{Value: "America/Anchorage", Label: "Alaska (GMT-09:00)", Offset: -9},
	{Value: "America/Los_Angeles", Label: "Pacific Time - US & Canada (GMT-08:00)", Offset: -8},
	{Value: "America/Tijuana", Label: "Tijuana (GMT-08:00)", Offset: -8},
	{Value: "America/Denver", Label: "Mountain Time - US & Canada (GMT-07:00)", Offset: -7},
	{Value: "America/Phoenix", Label: "Arizona (GMT-07:00)", Offset: -7},
	{Value: "America/Chihuahua", Label: "Chihuahua, Mazatlan (GMT-07:00)", Offset: -7},
	{Value: "America/Chicago", Label: "Central Time - US & Canada (GMT-06:00)", Offset: -6},
	{Value: "America/Mexico_City", Label: "Mexico City (GMT-06:00)", Offset: -6},
	{Value: "America/Regina", Label: "Saskatchewan (GMT-06:00)", Offset: -6},
	{Value: "America/Bogota", Label: "Bogota, Lima, Quito (GMT-05:00)", Offset: -5},
	{Value: "America/New_York", Label: "Eastern Time - US & Canada (GMT-05:00)", Offset: -5},
	{Value: "America/Caracas", Label: "Caracas (GMT-04:00)", Offset: -4},
	{Value: "America/Halifax", Label: "Atlantic Time - Canada (GMT-04:00)", Offset: -4},
	{Value: "America/Santiago", Label: "Santiago (GMT-04:00)", Offset: -4},
	{Value: "America/St_Johns", Label: "Newfoundland (GMT-03:30)", Offset: -3.5},
	{Value: "America/Sao_Paulo", Label: "Brasilia (GMT-03:00)", Offset: -3},
	{Value: "America/Argentina/Buenos_Aires", Label: "Buenos Aires (GMT-03:00)", Offset: -3},
	{Value: "America/Godthab", Label: "Greenland (GMT-03:00)", Offset: -3},
	{Value: "Atlantic/South_Georgia", Label: "Mid-Atlantic (GMT-02:00)", Offset: -2},
	{Value: "Atlantic/Azores", Label: "Azores (GMT-01:00)", Offset: -1},
	{Value: "Atlantic/Cape_Verde", Label: "Cape Verde Islands (GMT-01:00)", Offset: -1},
	{Value: "UTC", Label: "UTC (GMT+00:00)", Offset: 0},
	{Value: "Europe/London", Label: "London, Edinburgh, Dublin (GMT+00:00)", Offset: 0},
	{Value: "Europe/Lisbon", Label: "Lisbon (GMT+00:00)", Offset: 0},
	{Value: "Africa/Casablanca", Label: "Casablanca (GMT+00:00)", Offset: 0},
	{Value: "Europe/Paris", Label: "Paris, Brussels, Amsterdam (GMT+01:00)", Offset: 1},
	{Value: "Europe/Berlin", Label: "Berlin, Rome, Stockholm (GMT+01:00)", Offset: 1},
	{Value: "Europe/Madrid", Label: "Madrid (GMT+01:00)", Offset: 1},
	{Value: "Africa/Lagos", Label: "West Central Africa (GMT+01:00)", Offset: 1},
	{Value: "Europe/Athens", Label: "Athens, Istanbul, Bucharest (GMT+02:00)", Offset: 2},
	{Value: "Africa/Cairo", Label: "Cairo (GMT+02:00)", Offset: 2},
	{Value: "Africa/Johannesburg", Label: "Johannesburg, Pretoria (GMT+02:00)", Offset: 2},
	{Value: "Europe/Helsinki", Label: "Helsinki, Kyiv, Riga (GMT+02:00)", Offset: 2},
	{Value: "Asia/Jerusalem", Label: "Jerusalem (GMT+02:00)", Offset: 2},
	{Value: "Europe/Moscow", Label: "Moscow, St. Petersburg (GMT+03:00)", Offset: 3},
	{Value: "Asia/Kuwait", Label: "Kuwait, Riyadh (GMT+03:00)", Offset: 3},
	{Value: "Africa/Nairobi", Label: "Nairobi (GMT+03:00)", Offset: 3},
	{Value: "Asia/Baghdad", Label: "Baghdad (GMT+03:00)", Offset: 3},
	{Value: "Asia/Tehran", Label: "Tehran (GMT+03:30)", Offset: 3.5},
	{Value: "Asia/Dubai", Label: "Abu Dhabi, Muscat (GMT+04:00)", Offset: 4},
	{Value: "Asia/Baku", Label: "Baku, Tbilisi, Yerevan (GMT+04:00)", Offset: 4},
	{Value: "Asia/Kabul", Label: "Kabul (GMT+04:30)", Offset: 4.5},
	{Value: "Asia/Karachi", Label: "Islamabad, Karachi (GMT+05:00)", Offset: 5},
	{Value: "Asia/Tashkent", Label: "Tashkent (GMT+05:00)", Offset: 5},
	{Value: "Asia/Kolkata", Label: "India Standard Time - IST (GMT+05:30)", Offset: 5.5},
	{Value: "Asia/Colombo", Label: "Sri Jayawardenepura (GMT+05:30)", Offset: 5.5},
	{Value: "Asia/Kathmandu", Label: "Kathmandu (GMT+05:45)", Offset: 5.75},
	{Value: "Asia/Dhaka", Label: "Dhaka (GMT+06:00)", Offset: 6},
	{Value: "Asia/Almaty", Label: "Almaty, Novosibirsk (GMT+06:00)", Offset: 6},
	{Value: "Asia/Yangon", Label: "Yangon (GMT+06:30)", Offset: 6.5},
	{Value: "Asia/Bangkok", Label: "Bangkok, Hanoi, Jakarta (GMT+07:00)", Offset: 7},
	{Value: "Asia/Krasnoyarsk", Label: "Krasnoyarsk (GMT+07:00)", Offset: 7},
	{Value: "Asia/Shanghai", Label: "Beijing, Shanghai, Hong Kong (GMT+08:00)", Offset: 8},
	{Value: "Asia/Singapore", Label: "Singapore (GMT+08:00)", Offset: 8},
	{Value: "Asia/Taipei", Label: "Taipei (GMT+08:00)", Offset: 8},
	{Value: "Australia/Perth", Label: "Perth (GMT+08:00)", Offset: 8},
	{Value: "Asia/Irkutsk", Label: "Irkutsk, Ulaanbaatar (GMT+08:00)", Offset: 8},
	{Value: "Asia/Seoul", Label: "Seoul (GMT+09:00)", Offset: 9},
	{Value: "Asia/Tokyo", Label: "Tokyo, Osaka, Sapporo (GMT+09:00)", Offset: 9},
	{Value: "Australia/Adelaide", Label: "Adelaide (GMT+09:30)", Offset: 9.5},
	{Value: "Australia/Darwin", Label: "Darwin (GMT+09:30)", Offset: 9.5},
	{Value: "Australia/Sydney", Label: "Sydney, Melbourne, Canberra (GMT+10:00)", Offset: 10},
	{Value: "Australia/Brisbane", Label: "Brisbane (GMT+10:00)", Offset: 10},
	{Value: "Australia/Hobart", Label: "Hobart (GMT+10:00)", Offset: 10},
	{Value: "Asia/Vladivostok", Label: "Vladivostok (GMT+10:00)", Offset: 10},
	{Value: "Pacific/Guam", Label: "Guam, Port Moresby (GMT+10:00)", Offset: 10},
	{Value: "Asia/Magadan", Label: "Magadan, Solomon Islands (GMT+11:00)", Offset: 11},
	{Value: "Pacific/Auckland", Label: "Auckland, Wellington (GMT+12:00)", Offset: 12},
	{Value: "Pacific/Fiji", Label: "Fiji, Kamchatka, Marshall Islands (GMT+12:00)", Offset: 12},
	{Value: "Pacific/Tongatapu", Label: "Nuku'alofa (GMT+13:00)", Offset: 13},
}

// Valid reports whether name is a loadable IANA zone.  The curated list is
// a convenience, any zone the runtime knows is accepted.
func Valid(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Lookup returns the curated entry for name.
func Lookup(name string) (Zone, bool) {
	for _, z := range All {
		if z.Value == name {
			return z, true
		}
	}
	return Zone{}, false
}

// Describe labels name with its offset at instant at, e.g.
// "Current Timezone (Tokyo, Osaka, Sapporo GMT+09:00)".
func Describe(name string, at time.Time) (Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	_, secs := at.In(loc).Zone()
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	offset := fmt.Sprintf("GMT%c%02d:%02d", sign, secs/3600, (secs%3600)/60)
	display := name
	if z, ok := Lookup(name); ok {
		display, _, _ = strings.Cut(z.Label, " (")
	}
	hours := float64(secs) / 3600
	if sign == '-' {
		hours = -hours
	}
	return Zone{
		Value:  name,
		Label:  fmt.Sprintf("Current Timezone (%s %s)", display, offset),
		Offset: hours,
	}, nil
}
