package api

import (
	"maps"
	"time"
)

type (
	// IndexState tracks every flow that has started but not yet been
	// finalized, so that a restarted engine can resume them
	IndexState struct {
		LastUpdated time.Time              `json:"last_updated"`
		Active      map[FlowID]*ActiveFlow `json:"active"`
		Finished    int64                  `json:"finished"`
	}

	// ActiveFlow is the index entry for one unfinalized flow
	ActiveFlow struct {
		StartedAt    time.Time `json:"started_at"`
		ParentFlowID FlowID    `json:"parent_flow_id,omitempty"`
		ClientID     ClientID  `json:"client_id,omitempty"`
		Type         FlowType  `json:"type"`
	}
)

// SetActiveFlow returns a new IndexState with the flow marked active
func (st *IndexState) SetActiveFlow(id FlowID, af *ActiveFlow) *IndexState {
	res := *st
	res.Active = maps.Clone(st.Active)
	if res.Active == nil {
		res.Active = map[FlowID]*ActiveFlow{}
	}
	res.Active[id] = af
	return &res
}

// DeleteActiveFlow returns a new IndexState without the flow
func (st *IndexState) DeleteActiveFlow(id FlowID) *IndexState {
	if _, ok := st.Active[id]; !ok {
		return st
	}
	res := *st
	res.Active = maps.Clone(st.Active)
	delete(res.Active, id)
	res.Finished++
	return &res
}

// SetLastUpdated returns a new IndexState with the timestamp updated
func (st *IndexState) SetLastUpdated(t time.Time) *IndexState {
	res := *st
	res.LastUpdated = t
	return &res
}
