package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type (
	// Codec encodes a flow's typed state into a versioned envelope
	Codec[S any] struct {
		Migrate Migration[S]
		Version int
	}

	// Migration upgrades state data written by an older definition
	Migration[S any] func(version int, data json.RawMessage) (*S, error)

	envelope struct {
		Data    json.RawMessage `json:"data"`
		Version int             `json:"version"`
	}
)

// Decode reads state from its envelope. An empty input yields zero state
func (c Codec[S]) Decode(raw json.RawMessage) (*S, error) {
	if len(raw) == 0 {
		return new(S), nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Version != c.Version {
		if c.Migrate == nil {
			return nil, fmt.Errorf("%w: got %d, want %d",
				ErrStateVersion, env.Version, c.Version)
		}
		return c.Migrate(env.Version, env.Data)
	}

	res := new(S)
	if len(env.Data) == 0 {
		return res, nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Encode writes state into an envelope tagged with the codec's version
func (c Codec[S]) Encode(st *S) (json.RawMessage, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Version: c.Version,
		Data:    data,
	})
}
