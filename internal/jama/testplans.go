package jama

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// activePlanStatus is the option id of the "active" test-plan status.
const activePlanStatus = 2503

// TestPlan is a plan listed for a project.
type TestPlan struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Archived bool   `json:"archived"`
}

// ListTestPlans returns the plans of a project that are not archived,
// active plans first. Relative order within each group follows Jama.
func (c *Client) ListTestPlans(ctx context.Context, project string) ([]TestPlan, error) {
	items, err := getAll[ItemDTO](ctx, c, "/testplans", url.Values{"project": {project}})
	if err != nil {
		return nil, err
	}

	var active, open []TestPlan
	for _, it := range items {
		p := TestPlan{ID: it.ID, Name: it.str("name"), Archived: it.Archived, Active: isActive(it)}
		switch {
		case p.Active:
			active = append(active, p)
		case !p.Archived:
			open = append(open, p)
		default:
			log.Debug().Str("testplan", p.Name).Msg("Skipping archived test plan")
		}
	}
	return append(active, open...), nil
}

// isActive looks for the custom test-plan status field, whose key carries an
// instance-specific suffix.
func isActive(it ItemDTO) bool {
	for k := range it.Fields {
		if !strings.HasPrefix(k, "test_plan_status") {
			continue
		}
		if id, ok := it.id(k); ok && id == activePlanStatus {
			return true
		}
	}
	return false
}
