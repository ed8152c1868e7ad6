package nav

import "strings"

// ViewID names a navigable screen. The set below is what the console knows
// how to draw; any other string is still a valid ViewID.
type ViewID string

const (
	Dashboard    ViewID = "dashboard"
	Appointments ViewID = "appointments"
	Patients     ViewID = "patients"
	Encounters   ViewID = "encounters"
	Encounter    ViewID = "encounter" // reachable from actions; no screen
	Reports      ViewID = "reports"
	Inventory    ViewID = "inventory"
	Admin        ViewID = "admin"
	Help         ViewID = "help"
	Settings     ViewID = "settings"
	Profile      ViewID = "my-profile"
	Login        ViewID = "login"
)

// RailItem is an entry in the left navigation rail.
type RailItem struct {
	Label string
	View  ViewID
}

// RailItems lists the rail entries in display order. Help is separated
// from the rest when drawn.
var RailItems = []RailItem{
	{Label: "Overview", View: Dashboard},
	{Label: "Appointments", View: Appointments},
	{Label: "Patients", View: Patients},
	{Label: "Encounters", View: Encounters},
	{Label: "Reports", View: Reports},
	{Label: "Inventory", View: Inventory},
	{Label: "Administration", View: Admin},
	{Label: "Help", View: Help},
}

// Known lists every ViewID the console has a screen for. Encounter is
// not among them and renders the not found page.
func Known() []ViewID {
	return []ViewID{
		Dashboard, Appointments, Patients, Encounters, Reports,
		Inventory, Admin, Help, Settings, Profile, Login,
	}
}

// Title returns a display title for v: the identifier with its first
// letter upper-cased.
func Title(v ViewID) string {
	s := string(v)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
