package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	ts := time.Date(2024, 6, 7, 23, 30, 0, 0, time.UTC)
	kolkata := time.FixedZone("IST", 5*3600+1800)

	assert.Equal(t, Date{2024, time.June, 7}, DateOf(ts, nil))
	assert.Equal(t, Date{2024, time.June, 8}, DateOf(ts, kolkata))
}

func TestDate_Compare(t *testing.T) {
	a := Date{2024, time.June, 7}
	b := Date{2024, time.June, 5}
	c := Date{2023, time.December, 31}

	assert.True(t, a.After(b))
	assert.True(t, b.After(c))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, c.After(Date{}))
}

func TestDate_JSON(t *testing.T) {
	data, err := json.Marshal(Date{2024, time.June, 7})
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-07"`, string(data))

	data, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, `"Unknown"`, string(data))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-06-05"`), &d))
	assert.Equal(t, Date{2024, time.June, 5}, d)

	assert.Error(t, json.Unmarshal([]byte(`"06/05/2024"`), &d))
}

func TestAsFetchError(t *testing.T) {
	assert.Nil(t, AsFetchError(nil))

	plain := AsFetchError(assert.AnError)
	assert.Equal(t, KindNetwork, plain.Kind)
	assert.ErrorIs(t, plain, assert.AnError)

	malformed := NewMalformedResponseError(ErrMissingID)
	assert.Same(t, malformed, AsFetchError(malformed))
	assert.Contains(t, malformed.Error(), "malformed_response")
}
