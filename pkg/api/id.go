package api

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// FlowID is a unique identifier for a flow instance
	FlowID string

	// ClientID identifies a remote agent
	ClientID string

	// FlowType names a registered flow definition
	FlowType string

	// StateID names a handler within a flow definition
	StateID string

	// ActionName names a unit of work executed by a remote agent
	ActionName string

	// RequestID identifies a request within its flow. Allocated ids strictly
	// increase and are never reused
	RequestID int64

	// ResponseID is the ordinal of a response within its request
	ResponseID int64
)

const (
	// StartState is the entry handler every flow definition provides
	StartState StateID = "Start"

	// EndState is the distinguished final handler, run once no requests
	// remain outstanding
	EndState StateID = "End"
)

const childIDSeparator = ":"

// InvalidIDChars matches characters not permitted in externally supplied
// flow and client IDs. The colon is reserved for child flow IDs
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+]`)

// NewFlowID generates a random 16 character upper-case hex flow ID
func NewFlowID() FlowID {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return FlowID(strings.ToUpper(id[:16]))
}

// ChildFlowID derives the ID of a child flow from the parent request that
// spawned it. Children share the root flow's storage slot
func ChildFlowID(parent FlowID, req RequestID) FlowID {
	return FlowID(fmt.Sprintf("%s%s%d", parent, childIDSeparator, req))
}

// Root returns the ID of the top-level flow this flow descends from
func (id FlowID) Root() FlowID {
	root, _, _ := strings.Cut(string(id), childIDSeparator)
	return FlowID(root)
}

// IsChild returns true if the ID was derived with ChildFlowID
func (id FlowID) IsChild() bool {
	return strings.Contains(string(id), childIDSeparator)
}

// Valid returns true if every segment of the ID is non-empty and free of
// invalid characters
func (id FlowID) Valid() bool {
	for part := range strings.SplitSeq(string(id), childIDSeparator) {
		if part == "" || InvalidIDChars.MatchString(part) {
			return false
		}
	}
	return true
}

// SanitizeID removes invalid characters and surrounding whitespace
func SanitizeID[T ~string](id T) T {
	trimmed := strings.TrimSpace(string(id))
	return T(InvalidIDChars.ReplaceAllString(trimmed, ""))
}
