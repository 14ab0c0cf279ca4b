// Package interrogate discovers what a client is: its agent, platform,
// hardware, network and knowledge base. The flow publishes a single
// ClientSummary when it ends
package interrogate

import (
	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/internal/flows/knowledgebase"
	"github.com/kode4food/quarry/pkg/api"
)

type (
	// Args configures an interrogation. With neither support flag set, only
	// the Python agent is assumed to be running
	Args struct {
		Labels             []string `json:"labels,omitempty"`
		RRGSupport         bool     `json:"rrg_support,omitempty"`
		PythonAgentSupport bool     `json:"python_agent_support,omitempty"`
		SkipCloudMetadata  bool     `json:"skip_cloud_metadata,omitempty"`
		Lightweight        bool     `json:"lightweight,omitempty"`
	}

	// State is the client snapshot under construction
	State struct {
		Client api.ClientSummary `json:"client"`
		FQDN   string            `json:"fqdn,omitempty"`
		OS     string            `json:"os,omitempty"`
	}
)

// FlowType is the type the interrogation flow registers under
const FlowType api.FlowType = "Interrogate"

const (
	ActionGetClientInfo        api.ActionName = "GetClientInfo"
	ActionGetPlatformInfo      api.ActionName = "GetPlatformInfo"
	ActionGetInstallDate       api.ActionName = "GetInstallDate"
	ActionGetMemorySize        api.ActionName = "GetMemorySize"
	ActionGetConfiguration     api.ActionName = "GetConfiguration"
	ActionGetLibraryVersions   api.ActionName = "GetLibraryVersions"
	ActionEnumerateInterfaces  api.ActionName = "EnumerateInterfaces"
	ActionEnumerateFilesystems api.ActionName = "EnumerateFilesystems"
	ActionGetCloudVMMetadata   api.ActionName = "GetCloudVMMetadata"
	ActionRRGGetSystemMetadata api.ActionName = "rrg.GetSystemMetadata"
)

const (
	StateClientInfo           api.StateID = "ClientInfo"
	StatePlatform             api.StateID = "Platform"
	StateInstallDate          api.StateID = "InstallDate"
	StateMemorySize           api.StateID = "MemorySize"
	StateClientConfiguration  api.StateID = "ClientConfiguration"
	StateClientLibraries      api.StateID = "ClientLibraries"
	StateEnumerateInterfaces  api.StateID = "EnumerateInterfaces"
	StateEnumerateFilesystems api.StateID = "EnumerateFilesystems"
	StateCloudMetadata        api.StateID = "CloudMetadata"
	StateRRGSystemMetadata    api.StateID = "RRGSystemMetadata"
	StateKnowledgeBase        api.StateID = "KnowledgeBase"
)

// Flow counters incremented by the interrogation handlers
const (
	CounterCloudMetadataErrors = "cloud_metadata_collection_errors"
	CounterUnlabeledClients    = "unlabeled_clients"
)

// Flow returns the interrogation flow definition
func Flow() *flow.Definition[State] {
	return &flow.Definition[State]{
		Type:    FlowType,
		Version: 1,
		Notify:  api.NotifyClientInterrogated,
		Start:   start,
		States: map[api.StateID]flow.Handler[State]{
			StateClientInfo:           clientInfo,
			StatePlatform:             platform,
			StateInstallDate:          installDate,
			StateMemorySize:           memorySize,
			StateClientConfiguration:  clientConfiguration,
			StateClientLibraries:      clientLibraries,
			StateEnumerateInterfaces:  enumerateInterfaces,
			StateEnumerateFilesystems: enumerateFilesystems,
			StateCloudMetadata:        cloudMetadata,
			StateRRGSystemMetadata:    rrgSystemMetadata,
			StateKnowledgeBase:        processKnowledgeBase,
		},
		End: end,
	}
}

func start(ctx *flow.Context, _ *api.ResponsesView, _ *State) error {
	args, err := decodeArgs(ctx)
	if err != nil {
		return err
	}

	// Requests for an agent that isn't running would never complete
	if args.RRGSupport {
		if args.PythonAgentSupport {
			ctx.CallClient(ActionGetClientInfo, nil, StateClientInfo)
		}
		ctx.CallClient(
			ActionRRGGetSystemMetadata, nil, StateRRGSystemMetadata,
		)
	} else {
		ctx.CallClient(ActionGetClientInfo, nil, StateClientInfo)
		ctx.CallClient(ActionGetPlatformInfo, nil, StatePlatform)
		ctx.CallClient(ActionGetInstallDate, nil, StateInstallDate)
	}

	ctx.CallClient(ActionGetMemorySize, nil, StateMemorySize)
	ctx.CallClient(ActionGetConfiguration, nil, StateClientConfiguration)
	ctx.CallClient(ActionGetLibraryVersions, nil, StateClientLibraries)
	ctx.CallClient(ActionEnumerateInterfaces, nil, StateEnumerateInterfaces)
	ctx.CallClient(ActionEnumerateFilesystems, nil, StateEnumerateFilesystems)
	return nil
}

func end(ctx *flow.Context, _ *api.ResponsesView, st *State) error {
	sum := st.Client
	sum.ClientID = ctx.ClientID()
	sum.Timestamp = ctx.Now()
	ctx.SendReply(&sum)
	return nil
}

// Flows returns the definitions the interrogation depends on, itself
// included
func Flows() []flow.Flow {
	return []flow.Flow{
		Flow(),
		knowledgebase.Flow(),
	}
}

func decodeArgs(ctx *flow.Context) (*Args, error) {
	var args Args
	if err := ctx.DecodeArgs(&args); err != nil {
		return nil, err
	}
	return &args, nil
}
