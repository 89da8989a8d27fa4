package ais

import "testing"

func TestEndpoints(t *testing.T) {
	ep := Endpoints{BaseURL: "https://ais.usvisa-info.com/", Locale: "es-co", ScheduleID: "123"}
	link := &Link{FacilityID: 25, Date: "2024-06-10", Time: "09:00"}
	const appt = "https://ais.usvisa-info.com/es-co/niv/schedule/123/appointment"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"sign in", ep.SignIn(), "https://ais.usvisa-info.com/es-co/niv/users/sign_in"},
		{"sign out", ep.SignOut(), "https://ais.usvisa-info.com/es-co/niv/users/sign_out"},
		{"appointment", ep.Appointment(), appt},
		{"primary days", ep.Days(25, nil), appt + "/days/25.json?appointments[expedite]=false"},
		{"primary times", ep.Times(25, "2024-06-10", nil), appt + "/times/25.json?date=2024-06-10&appointments[expedite]=false"},
		{"secondary days", ep.Days(26, link),
			appt + "/days/26.json?consulate_id=25&consulate_date=2024-06-10&consulate_time=09:00&appointments[expedite]=false"},
		{"secondary times", ep.Times(26, "2024-06-08", link),
			appt + "/times/26.json?date=2024-06-08&consulate_id=25&consulate_date=2024-06-10&consulate_time=09:00&appointments[expedite]=false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got  %s\nwant %s", tt.got, tt.want)
			}
		})
	}
}

func TestEndpointsDefaultBase(t *testing.T) {
	ep := Endpoints{Locale: "es-mx", ScheduleID: "9"}
	if got, want := ep.SignIn(), "https://ais.usvisa-info.com/es-mx/niv/users/sign_in"; got != want {
		t.Fatalf("SignIn() = %s, want %s", got, want)
	}
}
