// Package knowledgebase gathers the host facts later flows rely on: the
// client's hostname and its user accounts
package knowledgebase

import (
	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
)

type (
	// Args configures a knowledge base collection
	Args struct {
		OS              string `json:"os,omitempty"`
		RequireComplete bool   `json:"require_complete,omitempty"`
		Lightweight     bool   `json:"lightweight,omitempty"`
	}

	// Hostname is the payload of the GetHostname action
	Hostname struct {
		Hostname string `json:"hostname"`
		FQDN     string `json:"fqdn,omitempty"`
	}

	// State accumulates the knowledge base between requests
	State struct {
		KnowledgeBase api.KnowledgeBase `json:"knowledge_base"`
		Missing       []string          `json:"missing,omitempty"`
	}
)

// FlowType is the type the knowledge base flow registers under
const FlowType api.FlowType = "KnowledgeBaseInitialization"

const (
	ActionGetHostname    api.ActionName = "GetHostname"
	ActionEnumerateUsers api.ActionName = "EnumerateUsers"

	StateHostname api.StateID = "Hostname"
	StateUsers    api.StateID = "Users"
)

// Flow returns the knowledge base flow definition
func Flow() *flow.Definition[State] {
	return &flow.Definition[State]{
		Type:    FlowType,
		Version: 1,
		Start:   start,
		States: map[api.StateID]flow.Handler[State]{
			StateHostname: hostname,
			StateUsers:    users,
		},
		End: end,
	}
}

func start(ctx *flow.Context, _ *api.ResponsesView, st *State) error {
	var args Args
	if err := ctx.DecodeArgs(&args); err != nil {
		return err
	}
	st.KnowledgeBase.OS = args.OS
	ctx.CallClient(ActionGetHostname, nil, StateHostname)
	if !args.Lightweight {
		ctx.CallClient(ActionEnumerateUsers, nil, StateUsers)
	}
	return nil
}

func hostname(ctx *flow.Context, view *api.ResponsesView, st *State) error {
	if !view.Success() {
		return missing(ctx, st, "hostname", view.Message())
	}
	h, err := api.DecodeFirst[Hostname](view)
	if err != nil {
		return missing(ctx, st, "hostname", err.Error())
	}
	st.KnowledgeBase.Hostname = h.Hostname
	st.KnowledgeBase.FQDN = h.FQDN
	return nil
}

func users(ctx *flow.Context, view *api.ResponsesView, st *State) error {
	if !view.Success() {
		return missing(ctx, st, "users", view.Message())
	}
	res, err := api.DecodeAll[*api.User](view)
	if err != nil {
		return missing(ctx, st, "users", err.Error())
	}
	st.KnowledgeBase.Users = res
	return nil
}

func end(ctx *flow.Context, _ *api.ResponsesView, st *State) error {
	ctx.SendReply(st.KnowledgeBase)
	return nil
}

// missing records an unavailable fact. With RequireComplete set, the whole
// collection fails instead
func missing(ctx *flow.Context, st *State, fact, reason string) error {
	var args Args
	if err := ctx.DecodeArgs(&args); err != nil {
		return err
	}
	if args.RequireComplete {
		return flow.Abort("knowledge base incomplete: %s: %s", fact, reason)
	}
	ctx.Log("Could not collect %s: %s", fact, reason)
	st.Missing = append(st.Missing, fact)
	return nil
}
