package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// ReportQuery selects a time report.
type ReportQuery struct {
	GroupBy   model.ReportGroup
	From      string
	To        string
	ProjectID string
	UserID    string
}

func (q ReportQuery) values() url.Values {
	v := url.Values{}
	setIf(v, "group_by", string(q.GroupBy))
	setIf(v, "from", q.From)
	setIf(v, "to", q.To)
	setIf(v, "project_id", q.ProjectID)
	setIf(v, "user_id", q.UserID)
	return v
}

// PayloadKind tags which shape the backend answered with.
type PayloadKind int

const (
	// PayloadRows is a flat list of rows, bare or under "rows".
	PayloadRows PayloadKind = iota + 1
	// PayloadBreakdown is a map keyed by group.
	PayloadBreakdown
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadRows:
		return "rows"
	case PayloadBreakdown:
		return "breakdown"
	}
	return "unknown"
}

// ReportPayload is the decoded report response. Exactly one of Rows and
// Breakdown is set, according to Kind.
type ReportPayload struct {
	Kind      PayloadKind
	Rows      []any
	Breakdown map[string]any
}

var errReportShape = errors.New("unrecognized report shape")

// DecodeReport classifies a raw report body.
func DecodeReport(raw any) (ReportPayload, error) {
	switch v := raw.(type) {
	case []any:
		return ReportPayload{Kind: PayloadRows, Rows: v}, nil
	case map[string]any:
		for _, key := range []string{"rows", "data", "items"} {
			if rows, ok := v[key].([]any); ok {
				return ReportPayload{Kind: PayloadRows, Rows: rows}, nil
			}
		}
		for _, key := range []string{"breakdown", "groups"} {
			if m, ok := v[key].(map[string]any); ok {
				return ReportPayload{Kind: PayloadBreakdown, Breakdown: m}, nil
			}
		}
		return ReportPayload{Kind: PayloadBreakdown, Breakdown: v}, nil
	}
	return ReportPayload{}, errReportShape
}

// Canonical converts either shape into rows sorted by key. Rows sharing a
// key are summed.
func (p ReportPayload) Canonical() []model.ReportRow {
	byKey := map[string]*model.ReportRow{}
	var order []string
	add := func(row model.ReportRow) {
		if row.Key == "" {
			return
		}
		if existing, ok := byKey[row.Key]; ok {
			existing.Hours = model.RoundHours(existing.Hours + row.Hours)
			existing.BillableHours = model.RoundHours(existing.BillableHours + row.BillableHours)
			existing.Entries += row.Entries
			return
		}
		r := row
		byKey[row.Key] = &r
		order = append(order, row.Key)
	}

	switch p.Kind {
	case PayloadRows:
		for _, item := range p.Rows {
			add(normalize.ReportRow(item, ""))
		}
	case PayloadBreakdown:
		for key, item := range p.Breakdown {
			add(normalize.ReportRow(item, key))
		}
	}

	sort.Strings(order)
	out := make([]model.ReportRow, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// Report fetches an aggregated time report in canonical form.
func (c *Client) Report(ctx context.Context, q ReportQuery) ([]model.ReportRow, error) {
	if q.GroupBy != "" && !q.GroupBy.Valid() {
		return nil, fmt.Errorf("unknown report grouping %q", q.GroupBy)
	}
	raw, err := c.do(ctx, http.MethodGet, "/reports/time", q.values(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching report: %w", err)
	}
	payload, err := DecodeReport(raw)
	if err != nil {
		return nil, fmt.Errorf("fetching report: %w", err)
	}
	c.logger.Debug("report decoded", "shape", payload.Kind, "group", q.GroupBy)
	return payload.Canonical(), nil
}
