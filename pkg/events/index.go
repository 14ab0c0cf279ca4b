package events

import (
	"github.com/kode4food/timebox"

	"github.com/kode4food/quarry/pkg/api"
)

const IndexPrefix = "index"

var (
	IndexKey = timebox.NewAggregateID(IndexPrefix)

	IndexAppliers = makeIndexAppliers()
)

// NewIndexState creates an empty index of active flows
func NewIndexState() *api.IndexState {
	return &api.IndexState{
		Active: map[api.FlowID]*api.ActiveFlow{},
	}
}

// IsIndexEvent returns true if the event is for the index aggregate
func IsIndexEvent(ev *timebox.Event) bool {
	return len(ev.AggregateID) >= 1 && ev.AggregateID[0] == IndexPrefix
}

func makeIndexAppliers() timebox.Appliers[*api.IndexState] {
	return MakeAppliers(map[api.EventType]timebox.Applier[*api.IndexState]{
		api.EventTypeFlowActivated:   timebox.MakeApplier(flowActivated),
		api.EventTypeFlowDeactivated: timebox.MakeApplier(flowDeactivated),
	})
}

func flowActivated(
	st *api.IndexState, ev *timebox.Event, data api.FlowActivatedEvent,
) *api.IndexState {
	return st.
		SetActiveFlow(data.FlowID, &api.ActiveFlow{
			StartedAt:    ev.Timestamp,
			ParentFlowID: data.ParentFlowID,
			ClientID:     data.ClientID,
			Type:         data.Type,
		}).
		SetLastUpdated(ev.Timestamp)
}

func flowDeactivated(
	st *api.IndexState, ev *timebox.Event, data api.FlowDeactivatedEvent,
) *api.IndexState {
	return st.
		DeleteActiveFlow(data.FlowID).
		SetLastUpdated(ev.Timestamp)
}
