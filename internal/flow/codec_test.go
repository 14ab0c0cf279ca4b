package flow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/flow"
)

type v2State struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCodecEmpty(t *testing.T) {
	st, err := flow.Codec[v2State]{Version: 2}.Decode(nil)
	assert.NoError(t, err)
	assert.Equal(t, &v2State{}, st)
}

func TestCodecRoundTrip(t *testing.T) {
	c := flow.Codec[v2State]{Version: 2}
	data, err := c.Encode(&v2State{Name: "x", Count: 3})
	assert.NoError(t, err)

	st, err := c.Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, &v2State{Name: "x", Count: 3}, st)
}

func TestCodecVersionMismatch(t *testing.T) {
	c := flow.Codec[v2State]{Version: 2}
	_, err := c.Decode(json.RawMessage(`{"version":1,"data":{"n":1}}`))
	assert.ErrorIs(t, err, flow.ErrStateVersion)
}

func TestCodecMigrate(t *testing.T) {
	c := flow.Codec[v2State]{
		Version: 2,
		Migrate: func(version int, data json.RawMessage) (*v2State, error) {
			assert.Equal(t, 1, version)
			var old struct {
				N int `json:"n"`
			}
			if err := json.Unmarshal(data, &old); err != nil {
				return nil, err
			}
			return &v2State{Name: "migrated", Count: old.N}, nil
		},
	}
	st, err := c.Decode(json.RawMessage(`{"version":1,"data":{"n":4}}`))
	assert.NoError(t, err)
	assert.Equal(t, &v2State{Name: "migrated", Count: 4}, st)
}

func TestCodecUnknownFields(t *testing.T) {
	c := flow.Codec[v2State]{Version: 2}
	_, err := c.Decode(json.RawMessage(`{"version":2,"data":{"other":1}}`))
	assert.Error(t, err)
}
