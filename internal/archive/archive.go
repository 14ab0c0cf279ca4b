// Package archive writes the final record of terminal flows to blob storage
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gocloud.dev/blob"

	"github.com/kode4food/quarry/pkg/api"
)

type (
	// Archive is an engine publisher that stores terminal flows in a bucket
	Archive struct {
		bucket BucketWriter
		prefix string
	}

	// BucketWriter is the subset of *blob.Bucket the archive writes through
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}

	// Record is the archived form of a terminal flow
	Record struct {
		CompletedAt time.Time         `json:"completed_at,omitzero"`
		Args        json.RawMessage   `json:"args,omitempty"`
		Results     []json.RawMessage `json:"results,omitempty"`
		Logs        []*api.LogEntry   `json:"logs,omitempty"`
		FlowID      api.FlowID        `json:"flow_id"`
		ParentID    api.FlowID        `json:"parent_flow_id,omitempty"`
		ClientID    api.ClientID      `json:"client_id,omitempty"`
		Type        api.FlowType      `json:"type"`
		Creator     string            `json:"creator,omitempty"`
		Status      api.FlowStatus    `json:"status"`
		Error       string            `json:"error,omitempty"`
	}
)

// DefaultPrefix is the key prefix archived flows are written under
const DefaultPrefix = "flows"

var (
	ErrBucketRequired = errors.New("bucket is required")
	ErrFlowRequired   = errors.New("flow state is required")
	ErrNotTerminal    = errors.New("flow is not terminal")
)

// New creates an Archive writing to the bucket under prefix
func New(bucket BucketWriter, prefix string) (*Archive, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Archive{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Open opens the bucket at the URL (mem://, file://, s3://, gs://,
// azblob://) and returns an Archive for it along with the bucket, which the
// caller must close
func Open(ctx context.Context, url string) (*Archive, *blob.Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	a, err := New(b, DefaultPrefix)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	return a, b, nil
}

// Publish writes the flow's record. Publishing the same flow again
// overwrites the previous record with identical content
func (a *Archive) Publish(ctx context.Context, st *api.FlowState) error {
	if st == nil {
		return ErrFlowRequired
	}
	if !st.IsTerminal() {
		return ErrNotTerminal
	}
	data, err := json.Marshal(NewRecord(st))
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, Key(a.prefix, st.ID), data,
		&blob.WriterOptions{ContentType: "application/json"},
	)
}

// NewRecord builds the archived form of a flow
func NewRecord(st *api.FlowState) *Record {
	return &Record{
		CompletedAt: st.CompletedAt,
		Args:        st.Args,
		Results:     st.ResultPayloads(),
		Logs:        st.Logs,
		FlowID:      st.ID,
		ParentID:    st.ParentFlowID,
		ClientID:    st.ClientID,
		Type:        st.Type,
		Creator:     st.Creator,
		Status:      st.Status,
		Error:       st.Error,
	}
}

// Key returns the object key of a flow's record. Child flow IDs keep their
// colon-separated path as nested key segments
func Key(prefix string, id api.FlowID) string {
	key := strings.ReplaceAll(string(id), ":", "/") + ".json"
	if prefix == "" {
		return key
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}
