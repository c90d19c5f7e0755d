package pagination

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageAndLimit(t *testing.T) {
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("abc"))
	assert.Equal(t, 1, ParsePage("0"))
	assert.Equal(t, 1, ParsePage("-3"))
	assert.Equal(t, 4, ParsePage(" 4 "))

	assert.Equal(t, 25, ParseLimit(""))
	assert.Equal(t, 25, ParseLimit("ten"))
	assert.Equal(t, 25, ParseLimit("0"))
	assert.Equal(t, 10, ParseLimit("10"))
	assert.Equal(t, 500, ParseLimit("500"))
}

func TestFlexIntUnmarshal(t *testing.T) {
	var body struct {
		Page  FlexInt `json:"page"`
		Limit FlexInt `json:"limit"`
		Other FlexInt `json:"other"`
		Null  FlexInt `json:"null"`
	}
	err := json.Unmarshal([]byte(`{"page":"3","limit":10,"other":"x","null":null}`), &body)
	require.NoError(t, err)

	assert.Equal(t, 3, body.Page.Int())
	assert.Equal(t, 10, body.Limit.Int())
	assert.Equal(t, 0, body.Other.Int())
	assert.Equal(t, 0, body.Null.Int())
	assert.Equal(t, 25, LimitOrDefault(body.Other.Int()))
}

func TestTotalPagesLaw(t *testing.T) {
	for total := int64(0); total <= 60; total++ {
		for limit := 1; limit <= 12; limit++ {
			got := TotalPages(total, limit)
			if total == 0 {
				assert.Zero(t, got)
				continue
			}
			assert.GreaterOrEqual(t, got*int64(limit), total)
			assert.Less(t, (got-1)*int64(limit), total)
		}
	}
}

func TestNewPageNeverNilData(t *testing.T) {
	p := NewPage[string](nil, 1, 25, 0)
	assert.NotNil(t, p.Data)
	assert.Zero(t, p.TotalPages)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"page":1,"limit":25,"total":0,"totalPages":0}`, string(b))
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 25))
	assert.Equal(t, 50, Offset(3, 25))
}

func TestOffsetSaturates(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 25))
	assert.Equal(t, 0, Offset(0, 25))
	assert.Equal(t, 0, Offset(3, 0))
	assert.Equal(t, 50, Offset(3, 25))

	assert.Equal(t, math.MaxInt, Offset(math.MaxInt/2+2, 2))
	assert.Equal(t, math.MaxInt, Offset(2, math.MaxInt))
	assert.Equal(t, math.MaxInt, Offset(math.MaxInt, math.MaxInt))
	assert.Equal(t, math.MaxInt-1, Offset(math.MaxInt/2+1, 2))
}
