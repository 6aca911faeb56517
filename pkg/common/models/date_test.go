package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	var payload struct {
		BirthDate Date  `json:"birth_date"`
		Other     *Date `json:"other"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"birth_date":"2023-02-28","other":null}`), &payload))
	assert.Equal(t, NewDate(2023, time.February, 28), payload.BirthDate)
	assert.Nil(t, payload.Other)

	out, err := json.Marshal(payload.BirthDate)
	require.NoError(t, err)
	assert.Equal(t, `"2023-02-28"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"birth_date":"28/02/2023"}`), &payload))
}

func TestDateOfDropsClock(t *testing.T) {
	local := time.FixedZone("WIB", 7*60*60)
	d := DateOf(time.Date(2024, time.March, 1, 23, 59, 0, 0, local))
	assert.Equal(t, "2024-03-01", d.String())
	assert.True(t, DateOf(time.Time{}).IsZero())
}

func TestMonthsBetween(t *testing.T) {
	birth := NewDate(2022, time.January, 31)
	cases := []struct {
		end  Date
		want int
	}{
		{NewDate(2022, time.January, 31), 0},
		{NewDate(2022, time.February, 28), 0},
		{NewDate(2022, time.March, 31), 2},
		{NewDate(2023, time.January, 30), 11},
		{NewDate(2023, time.January, 31), 12},
		{NewDate(2021, time.December, 1), 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MonthsBetween(birth, tc.end), tc.end.String())
	}
}
