package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	t.Run("SingleRoundTrip", func(t *testing.T) {
		// Buy AAPL 10@100, Sell AAPL 10@110 => (1100-0) - (1000+0) = 100.
		rec, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "AAPL", Quantity: 10, Price: 100},
			{TransactionType: "Sell", Symbol: "AAPL", Quantity: 10, Price: 110},
		})

		require.NoError(t, err)
		assert.Equal(t, 100.0, rec.Profit)
		assert.Equal(t, 1, rec.Trades)
		assert.Equal(t, 100.0, rec.BySymbol["AAPL"])
	})

	t.Run("CommissionOnBothSides", func(t *testing.T) {
		rec, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "TSLA", Quantity: 5, Price: 200, Commission: 1},
			{TransactionType: "Sell", Symbol: "TSLA", Quantity: 5, Price: 210, Commission: 1},
		})

		require.NoError(t, err)
		// sellTotal = 1050 - 1 = 1049; buyTotal = 1000 + 1 = 1001.
		assert.Equal(t, 48.0, rec.Profit)
	})

	t.Run("MultipleSymbols", func(t *testing.T) {
		rec, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "AAPL", Quantity: 10, Price: 100},
			{TransactionType: "Sell", Symbol: "AAPL", Quantity: 10, Price: 110},
			{TransactionType: "Buy", Symbol: "MSFT", Quantity: 2, Price: 300},
			{TransactionType: "Sell", Symbol: "MSFT", Quantity: 2, Price: 290},
		})

		require.NoError(t, err)
		assert.Equal(t, 80.0, rec.Profit)
		assert.Equal(t, 2, rec.Trades)
		assert.Equal(t, -20.0, rec.BySymbol["MSFT"])
	})

	t.Run("PartialFills", func(t *testing.T) {
		// Two buys matched by one sell of the combined quantity.
		rec, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "NVDA", Quantity: 3, Price: 100},
			{TransactionType: "Buy", Symbol: "NVDA", Quantity: 2, Price: 102},
			{TransactionType: "Sell", Symbol: "NVDA", Quantity: 5, Price: 105},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, rec.Trades)
		assert.InDelta(t, 21.0, rec.Profit, 1e-9)
	})

	t.Run("MissingSell", func(t *testing.T) {
		_, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "AAPL", Quantity: 10, Price: 100},
		})

		require.Error(t, err)
		var missing *MissingSideError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "AAPL", missing.Symbol)
		assert.Equal(t, "Sell", missing.Side)
	})

	t.Run("MissingBuy", func(t *testing.T) {
		_, err := Reconcile([]Entry{
			{TransactionType: "Sell", Symbol: "AAPL", Quantity: 10, Price: 100},
		})

		var missing *MissingSideError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "Buy", missing.Side)
	})

	t.Run("UnknownTransactionTypeRejected", func(t *testing.T) {
		// A lot that is neither Buy nor Sell must not be counted as either.
		_, err := Reconcile([]Entry{
			{TransactionType: "hold", Symbol: "AAPL", Quantity: 10, Price: 100},
			{TransactionType: "Sell", Symbol: "AAPL", Quantity: 10, Price: 110},
		})

		require.Error(t, err)
		var badType *InvalidTransactionTypeError
		require.ErrorAs(t, err, &badType)
		assert.Equal(t, "AAPL", badType.Symbol)
		assert.Equal(t, "hold", badType.TransactionType)
	})

	t.Run("QuantityMismatch", func(t *testing.T) {
		_, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "AAPL", Quantity: 10, Price: 100},
			{TransactionType: "Sell", Symbol: "AAPL", Quantity: 9, Price: 110},
		})

		var mismatch *QuantityMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 10.0, mismatch.BuyQuantity)
		assert.Equal(t, 9.0, mismatch.SellQuantity)
	})

	t.Run("MismatchWithinToleranceAccepted", func(t *testing.T) {
		rec, err := Reconcile([]Entry{
			{TransactionType: "Buy", Symbol: "BTC", Quantity: 1.00005, Price: 100},
			{TransactionType: "Sell", Symbol: "BTC", Quantity: 1.0, Price: 100},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, rec.Trades)
	})

	t.Run("Empty", func(t *testing.T) {
		rec, err := Reconcile(nil)

		require.NoError(t, err)
		assert.Equal(t, 0.0, rec.Profit)
		assert.Equal(t, 0, rec.Trades)
	})
}
