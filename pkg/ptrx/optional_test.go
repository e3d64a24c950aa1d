package ptrx_test

import (
	"encoding/json"
	"testing"

	"github.com/Abraxas-365/provisioning/pkg/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patchDoc struct {
	Name  ptrx.Optional[string] `json:"name,omitzero"`
	Phone ptrx.Optional[string] `json:"phone,omitzero"`
	Age   ptrx.Optional[int]    `json:"age,omitzero"`
}

func TestOptional_DecodesThreeStates(t *testing.T) {
	var doc patchDoc
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Ada","phone":null}`), &doc))

	name, ok := doc.Name.Get()
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)

	assert.True(t, doc.Phone.IsSet())
	assert.True(t, doc.Phone.IsNull())
	assert.Nil(t, doc.Phone.Ptr())

	assert.False(t, doc.Age.IsSet())
	assert.Equal(t, 7, doc.Age.OrElse(7))
}

func TestOptional_EncodeSkipsAbsent(t *testing.T) {
	doc := patchDoc{Name: ptrx.Some("Ada"), Phone: ptrx.Null[string]()}

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada","phone":null}`, string(out))
}

func TestValueOr(t *testing.T) {
	assert.Equal(t, "x", ptrx.ValueOr(nil, "x"))
	assert.Equal(t, "y", ptrx.ValueOr(ptrx.String("y"), "x"))
	assert.Equal(t, 0, ptrx.Value[int](nil))
	assert.Nil(t, ptrx.NonEmpty(""))
}
