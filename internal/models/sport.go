package models

type SportStatus string

const (
	SportActive     SportStatus = "active"
	SportComingSoon SportStatus = "coming_soon"
)

type SportCategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Sport is an entry of the static sports catalog.
type Sport struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Status     SportStatus     `json:"status"`
	Categories []SportCategory `json:"categories"`
}

// Sports is the catalog served by the API. Only basketball is live for now.
var Sports = []Sport{
	{
		Code:   "basketball",
		Name:   "농구",
		Status: SportActive,
		Categories: []SportCategory{
			{Code: "pickup", Name: "픽업게임"},
			{Code: "scrimmage", Name: "연습게임"},
			{Code: "guest", Name: "게스트 구인"},
		},
	},
	{Code: "tennis", Name: "테니스", Status: SportComingSoon, Categories: []SportCategory{}},
	{Code: "soccer", Name: "축구", Status: SportComingSoon, Categories: []SportCategory{}},
}

// FindSport looks a sport up by code.
func FindSport(code string) (Sport, bool) {
	for _, s := range Sports {
		if s.Code == code {
			return s, true
		}
	}
	return Sport{}, false
}
