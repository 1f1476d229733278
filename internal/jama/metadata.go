package jama

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Item type keys of the objects we read.
const (
	typeKeyTestPlan  = "TSTPL"
	typeKeyTestCycle = "TSTCY"
	typeKeyTestRun   = "TSTRN"
)

// Pick lists and test-run field labels resolved at connect time.
const (
	pickListPlannedWeek     = "Planned week"
	pickListPriority        = "Priority"
	pickListNetworkType     = "Network"
	pickListTestNetwork     = "Test Network"
	pickListExecutionMethod = "Execution Method"

	labelBugID           = "Bug ID"
	labelPriority        = "Priority"
	labelNetworkType     = "Network Type"
	labelTestNetwork     = "Test Network"
	labelExecutionMethod = "Test Execution Method"
)

// metadata is the instance-specific schema needed to read test runs.
type metadata struct {
	testPlanType  int
	testCycleType int

	// test run field keys
	bugIDField           string
	priorityField        string
	networkTypeField     string
	testNetworkField     string
	executionMethodField string
	plannedWeekField     string

	plannedWeeks     map[int]string
	priorities       map[int]string
	networkTypes     map[int]string
	testNetworks     map[int]string
	executionMethods map[int]string
}

// Connect loads item types and pick lists. It is called lazily by the fetch
// methods and only succeeds once; a failure is retried on the next call.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.metadata(ctx)
	return err
}

func (c *Client) metadata(ctx context.Context) (*metadata, error) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	if c.meta != nil {
		return c.meta, nil
	}

	types, err := getAll[ItemTypeDTO](ctx, c, "/itemtypes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load item types: %w", err)
	}
	byKey := make(map[string]ItemTypeDTO, len(types))
	for _, t := range types {
		byKey[t.TypeKey] = t
	}
	for _, k := range []string{typeKeyTestPlan, typeKeyTestCycle, typeKeyTestRun} {
		if _, ok := byKey[k]; !ok {
			return nil, fmt.Errorf("%w: item type %s", ErrNotFound, k)
		}
	}

	lists, err := getAll[PickListDTO](ctx, c, "/picklists", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load pick lists: %w", err)
	}
	listIDs := make(map[string]int, len(lists))
	for _, l := range lists {
		listIDs[l.Name] = l.ID
	}

	m := &metadata{
		testPlanType:  byKey[typeKeyTestPlan].ID,
		testCycleType: byKey[typeKeyTestCycle].ID,
	}

	for _, f := range byKey[typeKeyTestRun].Fields {
		switch {
		case f.Label == labelBugID:
			m.bugIDField = f.Name
		case f.Label == labelPriority:
			m.priorityField = f.Name
		case f.Label == labelNetworkType:
			m.networkTypeField = f.Name
		case f.Label == labelTestNetwork:
			m.testNetworkField = f.Name
		case f.Label == labelExecutionMethod:
			m.executionMethodField = f.Name
		case f.PickList != 0 && f.PickList == listIDs[pickListPlannedWeek]:
			m.plannedWeekField = f.Name
		}
	}

	options := []struct {
		list string
		dst  *map[int]string
	}{
		{pickListPlannedWeek, &m.plannedWeeks},
		{pickListPriority, &m.priorities},
		{pickListNetworkType, &m.networkTypes},
		{pickListTestNetwork, &m.testNetworks},
		{pickListExecutionMethod, &m.executionMethods},
	}
	for _, o := range options {
		*o.dst = make(map[int]string)
		id, ok := listIDs[o.list]
		if !ok {
			log.Warn().Str("picklist", o.list).Msg("Pick list not found, values will be unresolved")
			continue
		}
		opts, err := getAll[PickListDTO](ctx, c, "/picklists/"+strconv.Itoa(id)+"/options", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s options: %w", o.list, err)
		}
		for _, opt := range opts {
			(*o.dst)[opt.ID] = opt.Name
		}
	}

	log.Info().
		Int("plannedWeeks", len(m.plannedWeeks)).
		Int("priorities", len(m.priorities)).
		Str("plannedWeekField", m.plannedWeekField).
		Msg("Jama metadata loaded")

	c.meta = m
	return m, nil
}

// PlannedWeeks returns every planned-week option, sorted by name.
func (c *Client) PlannedWeeks(ctx context.Context) ([]string, error) {
	m, err := c.metadata(ctx)
	if err != nil {
		return nil, err
	}
	weeks := make([]string, 0, len(m.plannedWeeks))
	for _, w := range m.plannedWeeks {
		weeks = append(weeks, w)
	}
	sort.Strings(weeks)
	return weeks, nil
}

// userName resolves a user id to "First Last". Lookup failures yield an
// empty name and are not retried for the lifetime of the client.
func (c *Client) userName(ctx context.Context, id int) string {
	c.usersMu.RLock()
	name, ok := c.users[id]
	c.usersMu.RUnlock()
	if ok {
		return name
	}

	v, _, _ := c.lookups.Do("user|"+strconv.Itoa(id), func() (any, error) {
		var resp envelope[UserDTO]
		name := ""
		if err := c.get(ctx, "/users/"+strconv.Itoa(id), url.Values{}, &resp); err != nil {
			log.Warn().Err(err).Int("user", id).Msg("User lookup failed")
		} else {
			name = resp.Data.FirstName + " " + resp.Data.LastName
		}
		c.usersMu.Lock()
		c.users[id] = name
		c.usersMu.Unlock()
		return name, nil
	})
	return v.(string)
}
