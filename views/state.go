package views

// DashboardUpdated is posted by the dashboard's sync engine whenever its
// read model changes, triggering a redraw.
type DashboardUpdated struct{}
