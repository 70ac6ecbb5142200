package normalize

import "strings"

// districtRule maps a city-name fragment to a school district label.
// Order matters: first match wins.
type districtRule struct {
	fragment string
	district string
}

var districtRules = []districtRule{
	// Zip codes show up in place of city names on some payloads.
	{"10549", "Bedford Central"},
	{"10514", "Chappaqua Central"},
	{"10598", "Yorktown Central"},
	{"10506", "Bedford Central"},
	{"bedford", "Bedford Central"},
	{"chappaqua", "Chappaqua Central"},
	{"mount kisco", "Bedford Central"},
	{"kisco", "Bedford Central"},
	{"yorktown", "Yorktown Central"},
	{"scarsdale", "Scarsdale"},
	{"bronxville", "Bronxville"},
	{"rye", "Rye City"},
	{"white plains", "White Plains"},
	{"armonk", "Byram Hills"},
	{"katonah", "Katonah-Lewisboro"},
}

// District infers the school district from a city name by
// case-insensitive substring match, falling back to the given label.
func District(city, fallback string) string {
	c := strings.ToLower(city)
	for _, r := range districtRules {
		if strings.Contains(c, r.fragment) {
			return r.district
		}
	}
	return fallback
}
