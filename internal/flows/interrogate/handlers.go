package interrogate

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/internal/flows/knowledgebase"
	"github.com/kode4food/quarry/pkg/api"
)

type cloudMetadataArgs struct {
	Providers []string `json:"providers"`
}

const (
	systemLinux   = "Linux"
	systemWindows = "Windows"
	systemDarwin  = "Darwin"

	labelPunctuation = " _./:-"
)

var (
	cloudProviders = []string{"amazon", "google", "azure"}

	rrgSystems = map[string]string{
		"linux":   systemLinux,
		"macos":   systemDarwin,
		"windows": systemWindows,
	}
)

func clientInfo(ctx *flow.Context, view *api.ResponsesView, st *State) error {
	if !view.Success() {
		ctx.Log("Could not get ClientInfo.")
		return nil
	}
	info, err := api.DecodeFirst[api.ClientInformation](view)
	if err != nil {
		ctx.Log("Could not decode ClientInfo: %s", err)
		return nil
	}

	args, err := decodeArgs(ctx)
	if err != nil {
		return err
	}
	if len(args.Labels) > 0 {
		info.Labels = args.Labels
	} else {
		ctx.Inc(CounterUnlabeledClients)
	}

	labels := make([]string, 0, len(info.Labels))
	for _, l := range info.Labels {
		if !validLabel(l) {
			ctx.Log("Got invalid label: %s", l)
			continue
		}
		labels = append(labels, l)
	}
	info.Labels = labels
	st.Client.ClientInfo = &info
	return nil
}

func platform(ctx *flow.Context, view *api.ResponsesView, st *State) error {
	args, err := decodeArgs(ctx)
	if err != nil {
		return err
	}

	info, err := api.DecodeFirst[api.PlatformInfo](view)
	if view.Success() && err == nil {
		st.Client.System = info.System
		st.Client.OSRelease = info.Release
		st.Client.OSVersion = info.Version
		st.Client.Kernel = info.Kernel
		st.Client.Arch = info.Machine
		st.FQDN = info.FQDN
		st.OS = info.System
		requestCloudMetadata(ctx, args, info.System)
	} else {
		ctx.Log("Could not retrieve Platform info.")
	}

	if st.OS == "" {
		ctx.Log("Unknown system type, skipping knowledge base")
		return nil
	}
	requestKnowledgeBase(ctx, args, st)
	return nil
}

func rrgSystemMetadata(
	ctx *flow.Context, view *api.ResponsesView, st *State,
) error {
	if !view.Success() {
		return flow.Abort(
			"RRG system metadata collection failed: %s", view.Message(),
		)
	}
	if view.Len() != 1 {
		return flow.Abort(
			"Unexpected number of RRG system metadata responses: %d",
			view.Len(),
		)
	}
	md, err := api.DecodeFirst[api.SystemMetadata](view)
	if err != nil {
		return flow.Abort("Malformed RRG system metadata: %s", err)
	}

	args, err := decodeArgs(ctx)
	if err != nil {
		return err
	}
	if system, ok := rrgSystems[strings.ToLower(md.Type)]; ok {
		st.OS = system
		st.Client.System = system
	} else {
		ctx.Log("Unexpected operating system: %s", md.Type)
	}
	st.FQDN = md.FQDN
	st.Client.OSVersion = md.Version
	st.Client.InstallTime = md.InstallTime

	requestCloudMetadata(ctx, args, st.OS)
	if st.OS != "" {
		requestKnowledgeBase(ctx, args, st)
	}
	return nil
}

func installDate(ctx *flow.Context, view *api.ResponsesView, st *State) error {
	raw, ok := view.First()
	if !view.Success() || !ok {
		ctx.Log("Could not get InstallDate")
		return nil
	}

	res := gjson.ParseBytes(raw)
	switch {
	case res.Type == gjson.Number:
		st.Client.InstallTime = time.Unix(res.Int(), 0).UTC()
	case res.Type == gjson.String:
		t, err := time.Parse(time.RFC3339, res.String())
		if err != nil {
			ctx.Log("Unparseable InstallDate: %s", res.String())
			return nil
		}
		st.Client.InstallTime = t.UTC()
	case res.Get("integer").Type == gjson.Number:
		st.Client.InstallTime = time.Unix(res.Get("integer").Int(), 0).UTC()
	default:
		ctx.Log("Unknown response type for InstallDate: %s", res.Type)
	}
	return nil
}

func memorySize(_ *flow.Context, view *api.ResponsesView, st *State) error {
	if !view.Success() {
		return nil
	}
	if size, err := api.DecodeFirst[uint64](view); err == nil {
		st.Client.MemorySize = size
	}
	return nil
}

func clientConfiguration(
	_ *flow.Context, view *api.ResponsesView, st *State,
) error {
	if view.Success() {
		st.Client.Configuration = decodeStringMap(view)
	}
	return nil
}

func clientLibraries(
	_ *flow.Context, view *api.ResponsesView, st *State,
) error {
	if view.Success() {
		st.Client.Libraries = decodeStringMap(view)
	}
	return nil
}

func enumerateInterfaces(
	ctx *flow.Context, view *api.ResponsesView, st *State,
) error {
	if !view.Success() || view.IsEmpty() {
		ctx.Log("Could not enumerate interfaces: %s", view.Message())
		return nil
	}
	ifaces, err := api.DecodeAll[*api.Interface](view)
	if err != nil {
		ctx.Log("Could not decode interfaces: %s", err)
	}
	slices.SortFunc(ifaces, func(a, b *api.Interface) int {
		return cmp.Compare(a.Name, b.Name)
	})
	st.Client.Interfaces = ifaces
	return nil
}

func enumerateFilesystems(
	ctx *flow.Context, view *api.ResponsesView, st *State,
) error {
	if !view.Success() || view.IsEmpty() {
		ctx.Log("Could not enumerate file systems.")
		return nil
	}
	fs, err := api.DecodeAll[*api.Filesystem](view)
	if err != nil {
		ctx.Log("Could not decode file systems: %s", err)
	}
	st.Client.Filesystems = fs
	return nil
}

func cloudMetadata(
	ctx *flow.Context, view *api.ResponsesView, st *State,
) error {
	if !view.Success() {
		ctx.Inc(CounterCloudMetadataErrors)
		ctx.Log("Failed to collect cloud metadata: %s", view.Message())
		return nil
	}
	// Non-cloud machines answer with nothing
	if view.IsEmpty() {
		return nil
	}
	inst, err := api.DecodeFirst[api.CloudInstance](view)
	if err != nil || inst.Provider == "" {
		return nil
	}
	st.Client.CloudInstance = &inst
	return nil
}

func processKnowledgeBase(
	_ *flow.Context, view *api.ResponsesView, st *State,
) error {
	if !view.Success() {
		return flow.Abort(
			"Error while collecting the knowledge base: %s", view.Message(),
		)
	}
	kb, err := api.DecodeFirst[api.KnowledgeBase](view)
	if err != nil {
		return flow.Abort(
			"Error while collecting the knowledge base: %s", err,
		)
	}
	if kb.OS == "" {
		kb.OS = st.OS
	}
	if kb.FQDN == "" {
		kb.FQDN = st.FQDN
	}
	st.Client.KnowledgeBase = &kb
	st.Client.FQDN = kb.FQDN
	return nil
}

// requestCloudMetadata asks for VM metadata. There is no support for macOS
// cloud machines
func requestCloudMetadata(ctx *flow.Context, args *Args, system string) {
	if args.SkipCloudMetadata {
		return
	}
	if system != systemLinux && system != systemWindows {
		return
	}
	ctx.CallClient(ActionGetCloudVMMetadata,
		cloudMetadataArgs{Providers: cloudProviders}, StateCloudMetadata,
	)
}

// requestKnowledgeBase accepts a partial knowledge base rather than fail,
// since not all of its dependencies are known yet
func requestKnowledgeBase(ctx *flow.Context, args *Args, st *State) {
	ctx.CallFlow(knowledgebase.FlowType, knowledgebase.Args{
		OS:              st.OS,
		RequireComplete: false,
		Lightweight:     args.Lightweight,
	}, StateKnowledgeBase)
}

func decodeStringMap(view *api.ResponsesView) map[string]string {
	raw, ok := view.First()
	if !ok {
		return nil
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return nil
	}
	out := map[string]string{}
	res.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}

func validLabel(l string) bool {
	if l == "" {
		return false
	}
	for _, r := range l {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		if !strings.ContainsRune(labelPunctuation, r) {
			return false
		}
	}
	return true
}
