package api_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/pkg/api"
)

func TestCollateOrdersByResponseID(t *testing.T) {
	view := api.Collate(3, []*api.Fragment{
		{ID: 2, Payload: []byte(`"c"`)},
		{ID: 0, Payload: []byte(`"a"`)},
		{ID: 1, Payload: []byte(`"b"`)},
	}, api.Status{Success: true})

	assert.Equal(t, api.RequestID(3), view.RequestID())
	assert.Equal(t, 3, view.Len())
	assert.True(t, view.Success())
	assert.Equal(t, []json.RawMessage{
		json.RawMessage(`"a"`), json.RawMessage(`"b"`), json.RawMessage(`"c"`),
	}, view.All())

	first, ok := view.First()
	assert.True(t, ok)
	assert.JSONEq(t, `"a"`, string(first))
}

func TestCollateMalformedPayload(t *testing.T) {
	view := api.Collate(1, []*api.Fragment{
		{ID: 0, Payload: []byte(`{"system":"Linux"}`)},
		{ID: 1, Payload: []byte(`{"system":`)},
	}, api.Status{Success: true})

	assert.Equal(t, 1, view.Len())
	assert.True(t, view.HasDecodeErrors())
	errs := view.DecodeErrors()
	assert.Len(t, errs, 1)
	assert.Equal(t, api.ResponseID(1), errs[0].ResponseID)
	assert.ErrorIs(t, errs[0], api.ErrMalformedPayload)
}

func TestCollateFailureStatus(t *testing.T) {
	view := api.Collate(1, nil, api.Status{Message: "boom"})
	assert.False(t, view.Success())
	assert.Equal(t, "boom", view.Message())
	assert.True(t, view.IsEmpty())

	_, ok := view.First()
	assert.False(t, ok)
}

func TestCollateRequestIgnoresFragmentsPastSentinel(t *testing.T) {
	req := &api.RequestState{
		ID:       2,
		Status:   api.RequestOutstanding,
		Expected: 1,
		Outcome:  &api.Status{Success: true},
		Fragments: []*api.Fragment{
			{ID: 0, Payload: []byte(`1`)},
			{ID: 1, Payload: []byte(`2`)},
		},
	}
	view := api.CollateRequest(req)
	assert.Equal(t, 1, view.Len())
	assert.Equal(t, api.RequestID(2), view.RequestID())
}

func TestEmptyView(t *testing.T) {
	view := api.EmptyView()
	assert.True(t, view.Success())
	assert.Equal(t, 0, view.Len())
	assert.Empty(t, view.All())
}

func TestDecodeFirst(t *testing.T) {
	view := api.Collate(1, []*api.Fragment{
		{ID: 0, Payload: []byte(`{"system":"Linux","fqdn":"host.example"}`)},
	}, api.Status{Success: true})

	info, err := api.DecodeFirst[api.PlatformInfo](view)
	assert.NoError(t, err)
	assert.Equal(t, "Linux", info.System)
	assert.Equal(t, "host.example", info.FQDN)

	_, err = api.DecodeFirst[api.PlatformInfo](api.EmptyView())
	assert.ErrorIs(t, err, api.ErrNoResponses)
}

func TestDecodeAllTypeMismatch(t *testing.T) {
	view := api.Collate(1, []*api.Fragment{
		{ID: 0, Payload: []byte(`{"ifname":"eth0"}`)},
		{ID: 1, Payload: []byte(`42`)},
	}, api.Status{Success: true})

	res, err := api.DecodeAll[api.Interface](view)
	assert.Len(t, res, 1)

	var de *api.DecodeError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, api.ResponseID(1), de.ResponseID)
	assert.Contains(t, de.Error(), "response 1")
}
