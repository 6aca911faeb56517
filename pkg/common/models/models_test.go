package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateChildRequestImmutableKeys(t *testing.T) {
	cases := []struct {
		payload string
		want    bool
	}{
		{`{"name":"Renamed"}`, false},
		{`{"name":"Renamed","access_token":null}`, true},
		{`{"name":"Renamed","id":null}`, true},
		{`{"token":null}`, true},
		{`{"access_token":"5f0c1f8e-2d7b-4b4e-9a43-2f8d7c1b9e10"}`, true},
	}
	for _, tc := range cases {
		var req UpdateChildRequest
		require.NoError(t, json.Unmarshal([]byte(tc.payload), &req), tc.payload)
		assert.Equal(t, tc.want, req.NamesImmutable(), tc.payload)
	}
}

func TestUpdateChildRequestDecoding(t *testing.T) {
	var req UpdateChildRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Renamed","birth_date":"2024-01-02","guardian_phone":""}`), &req))
	require.NotNil(t, req.Name)
	assert.Equal(t, "Renamed", *req.Name)
	require.NotNil(t, req.BirthDate)
	assert.Equal(t, "2024-01-02", req.BirthDate.String())
	require.NotNil(t, req.GuardianPhone)
	assert.Empty(t, *req.GuardianPhone)
	assert.False(t, req.Empty())

	assert.Error(t, json.Unmarshal([]byte(`{"nickname":"x"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &req))
}
