package model

// ReportGroup selects how the backend aggregates time entries.
type ReportGroup string

const (
	GroupByUser     ReportGroup = "user"
	GroupByProject  ReportGroup = "project"
	GroupByBillable ReportGroup = "billable"
	GroupByWeek     ReportGroup = "weekly"
	GroupByMonth    ReportGroup = "monthly"
)

// Valid reports whether g is a known grouping.
func (g ReportGroup) Valid() bool {
	switch g {
	case GroupByUser, GroupByProject, GroupByBillable, GroupByWeek, GroupByMonth:
		return true
	}
	return false
}

// ReportRow is one aggregated bucket of a time report.
type ReportRow struct {
	// Key identifies the bucket: a user id, project id, "billable",
	// "non_billable", an ISO week or a YYYY-MM month.
	Key   string `json:"key"`
	Label string `json:"label"`

	Hours         float64 `json:"hours"`
	BillableHours float64 `json:"billableHours"`
	Entries       int     `json:"entries"`
}
