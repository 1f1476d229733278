package jama

import (
	"github.com/rs/zerolog/log"

	"jama-reports/internal/testrun"
)

// mapper turns test-run items into records using the instance metadata.
type mapper struct {
	meta  *metadata
	users func(id int) string
}

func (m mapper) records(items []ItemDTO, project, plan, cycle string) []testrun.Record {
	out := make([]testrun.Record, 0, len(items))
	for _, it := range items {
		if r, ok := m.record(it, project, plan, cycle); ok {
			out = append(out, r)
		}
	}
	return out
}

func (m mapper) record(it ItemDTO, project, plan, cycle string) (testrun.Record, bool) {
	if it.Fields == nil {
		rejectedMetric.WithLabelValues(reasonNoFields).Inc()
		return testrun.Record{}, false
	}

	status, err := testrun.ParseStatus(it.str("testRunStatus"))
	if err != nil {
		rejectedMetric.WithLabelValues(reasonUnknownStatus).Inc()
		log.Warn().Err(err).Int("id", it.ID).Str("testcycle", cycle).Msg("Skipping test run")
		return testrun.Record{}, false
	}

	created, err := ParseTime(it.CreatedDate)
	if err != nil {
		rejectedMetric.WithLabelValues(reasonBadTimestamp).Inc()
		log.Warn().Err(err).Int("id", it.ID).Msg("Skipping test run with invalid created date")
		return testrun.Record{}, false
	}
	modified, err := ParseTime(it.ModifiedDate)
	if err != nil {
		rejectedMetric.WithLabelValues(reasonBadTimestamp).Inc()
		log.Warn().Err(err).Int("id", it.ID).Msg("Skipping test run with invalid modified date")
		return testrun.Record{}, false
	}

	r := testrun.Record{
		ID:              it.ID,
		Project:         project,
		TestPlan:        plan,
		TestCycle:       cycle,
		TestGroup:       it.str("testRunSetName"),
		TestRun:         it.str("name"),
		Status:          status,
		Created:         created,
		Modified:        modified,
		BugID:           it.str(m.meta.bugIDField),
		Priority:        pick(m.meta.priorities, it, m.meta.priorityField),
		NetworkType:     pick(m.meta.networkTypes, it, m.meta.networkTypeField),
		TestNetwork:     pick(m.meta.testNetworks, it, m.meta.testNetworkField),
		ExecutionMethod: pick(m.meta.executionMethods, it, m.meta.executionMethodField),
	}

	if raw := it.str("executionDate"); raw != "" {
		if t, err := parseDate(raw); err == nil {
			r.ExecutionDate = &t
		}
	}
	if id, ok := it.id(m.meta.plannedWeekField); ok {
		r.PlannedWeek = m.meta.plannedWeeks[id]
	}
	if id, ok := it.id("assignedTo"); ok && m.users != nil {
		r.AssignedTo = m.users(id)
	}
	return r, true
}

// pick resolves a pick-list value; an unset value is Unassigned and an
// unknown option id is empty.
func pick(options map[int]string, it ItemDTO, field string) string {
	id, ok := it.id(field)
	if !ok {
		return testrun.Unassigned
	}
	return options[id]
}
