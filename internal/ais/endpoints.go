package ais

import (
	"strconv"
	"strings"
)

const DefaultBaseURL = "https://ais.usvisa-info.com"

// Endpoints builds the service URLs for one embassy locale and schedule.
type Endpoints struct {
	BaseURL    string
	Locale     string
	ScheduleID string
}

// Link constrains a secondary facility query by the chosen primary slot.
type Link struct {
	FacilityID int
	Date       string
	Time       string
}

func (e Endpoints) niv() string {
	base := strings.TrimRight(e.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/" + e.Locale + "/niv"
}

func (e Endpoints) SignIn() string  { return e.niv() + "/users/sign_in" }
func (e Endpoints) SignOut() string { return e.niv() + "/users/sign_out" }

func (e Endpoints) Appointment() string {
	return e.niv() + "/schedule/" + e.ScheduleID + "/appointment"
}

// Days lists dates for facilityID; a non-nil link makes it a secondary
// facility query.
func (e Endpoints) Days(facilityID int, link *Link) string {
	u := e.Appointment() + "/days/" + strconv.Itoa(facilityID) + ".json?"
	if link != nil {
		u += link.query() + "&"
	}
	return u + "appointments[expedite]=false"
}

func (e Endpoints) Times(facilityID int, date string, link *Link) string {
	u := e.Appointment() + "/times/" + strconv.Itoa(facilityID) + ".json?date=" + date + "&"
	if link != nil {
		u += link.query() + "&"
	}
	return u + "appointments[expedite]=false"
}

// query renders the consulate_* parameters unescaped, as the site expects.
func (l Link) query() string {
	return "consulate_id=" + strconv.Itoa(l.FacilityID) +
		"&consulate_date=" + l.Date +
		"&consulate_time=" + l.Time
}
