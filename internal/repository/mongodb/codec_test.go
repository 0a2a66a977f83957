package mongodb

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDecimalKeepsPrecision(t *testing.T) {
	type holder struct {
		Amount decimal.Decimal `bson:"amount"`
	}
	in := holder{Amount: decimal.RequireFromString("1234567890.0123456789")}

	raw, err := bson.MarshalWithRegistry(newRegistry(), in)
	require.NoError(t, err)

	var doc bson.Raw = raw
	assert.Equal(t, bson.TypeDecimal128, doc.Lookup("amount").Type)

	var out holder
	require.NoError(t, bson.UnmarshalWithRegistry(newRegistry(), raw, &out))
	assert.True(t, in.Amount.Equal(out.Amount), out.Amount.String())
}
