// Package clientindex keeps the latest discovery summary of every client in
// Redis, fed by terminal interrogation flows
package clientindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

// Index is an engine publisher that records ClientSummary results
type Index struct {
	client *redis.Client
	prefix string
	types  []api.FlowType
}

var (
	ErrClientRequired = errors.New("redis client is required")
	ErrClientNotFound = errors.New("client not found")
)

// New creates an Index that records the summaries published by successful
// flows of the given types
func New(
	client *redis.Client, prefix string, types ...api.FlowType,
) (*Index, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	return &Index{
		client: client,
		prefix: prefix,
		types:  types,
	}, nil
}

// Publish stores the flow's summary result, if it has one. A summary older
// than the one already stored is ignored
func (i *Index) Publish(ctx context.Context, st *api.FlowState) error {
	if st.Status != api.FlowSucceeded || !slices.Contains(i.types, st.Type) {
		return nil
	}
	sum, ok := findSummary(st)
	if !ok {
		slog.Warn("Interrogation published no summary",
			log.FlowID(st.ID),
			log.ClientID(st.ClientID))
		return nil
	}

	data, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	score := float64(sum.Timestamp.UnixMilli())
	current, err := i.client.ZScore(
		ctx, i.indexKey(), string(sum.ClientID),
	).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return err
	case current > score:
		return nil
	}

	_, err = i.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, i.clientKey(sum.ClientID), data, 0)
		p.ZAdd(ctx, i.indexKey(), redis.Z{
			Score:  score,
			Member: string(sum.ClientID),
		})
		return nil
	})
	return err
}

// Get returns the latest summary recorded for a client
func (i *Index) Get(
	ctx context.Context, id api.ClientID,
) (*api.ClientSummary, error) {
	data, err := i.client.Get(ctx, i.clientKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var res api.ClientSummary
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns the indexed clients, most recently interrogated first
func (i *Index) List(ctx context.Context) ([]api.ClientID, error) {
	ids, err := i.client.ZRevRange(ctx, i.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.ClientID, 0, len(ids))
	for _, id := range ids {
		res = append(res, api.ClientID(id))
	}
	return res, nil
}

func (i *Index) clientKey(id api.ClientID) string {
	return i.prefix + ":client:" + string(id)
}

func (i *Index) indexKey() string {
	return i.prefix + ":index"
}

// findSummary returns the last published result shaped like a summary
func findSummary(st *api.FlowState) (*api.ClientSummary, bool) {
	for _, r := range slices.Backward(st.Results) {
		if !gjson.ValidBytes(r.Payload) {
			continue
		}
		id := gjson.GetBytes(r.Payload, "client_id")
		if !id.Exists() || id.String() == "" {
			continue
		}
		var sum api.ClientSummary
		if err := json.Unmarshal(r.Payload, &sum); err != nil {
			continue
		}
		return &sum, true
	}
	return nil, false
}
