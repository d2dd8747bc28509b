package stats

import (
	"fmt"
	"math"
	"sort"
)

// quantityTolerance is the allowed difference between total Buy and Sell
// quantities for one symbol before the day is rejected.
const quantityTolerance = 0.0001

// Entry is a single buy or sell lot recorded for one trading day.
type Entry struct {
	TransactionType string // Buy | Sell
	Symbol          string
	Quantity        float64
	Price           float64
	Commission      float64
}

// MissingSideError reports a symbol that only has one side of the trade.
type MissingSideError struct {
	Symbol string
	Side   string // the missing side: Buy or Sell
}

func (e *MissingSideError) Error() string {
	return fmt.Sprintf("missing %s %s transaction", e.Symbol, e.Side)
}

// InvalidTransactionTypeError reports a lot whose transaction type is
// neither Buy nor Sell.
type InvalidTransactionTypeError struct {
	Symbol          string
	TransactionType string
}

func (e *InvalidTransactionTypeError) Error() string {
	return fmt.Sprintf("invalid transaction type %q for %s (must be Buy or Sell)",
		e.TransactionType, e.Symbol)
}

// QuantityMismatchError reports a symbol whose summed Buy and Sell
// quantities differ beyond the tolerance.
type QuantityMismatchError struct {
	Symbol       string
	BuyQuantity  float64
	SellQuantity float64
}

func (e *QuantityMismatchError) Error() string {
	return fmt.Sprintf("quantity mismatch for %s (Buy: %.8f, Sell: %.8f)",
		e.Symbol, e.BuyQuantity, e.SellQuantity)
}

// Reconciliation is the derived day aggregate for a set of detailed entries.
type Reconciliation struct {
	Profit   float64
	Trades   int // distinct symbols with at least one Buy and one Sell
	BySymbol map[string]float64
}

// Reconcile validates a day's buy/sell lots and derives its net profit.
//
// Per symbol: buyTotal sums quantity*price + commission over Buy lots,
// sellTotal sums quantity*price - commission over Sell lots, and the symbol
// profit is sellTotal - buyTotal. The day profit is the sum over symbols.
//
// Validation rejects, in deterministic symbol order, (a) a lot whose
// transaction type is neither Buy nor Sell, (b) a symbol missing its Buy or
// Sell counterpart, and (c) a symbol whose total Buy and Sell quantities
// differ by more than the tolerance. No entry is persisted when validation
// fails; callers run this before any write.
func Reconcile(entries []Entry) (Reconciliation, error) {
	bySymbol := make(map[string][]Entry)
	for _, e := range entries {
		bySymbol[e.Symbol] = append(bySymbol[e.Symbol], e)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	rec := Reconciliation{BySymbol: make(map[string]float64, len(symbols))}
	for _, symbol := range symbols {
		var (
			buys, sells        int
			buyQty, sellQty    float64
			buyTotal, sellTot  float64
		)
		for _, e := range bySymbol[symbol] {
			switch e.TransactionType {
			case "Sell":
				sells++
				sellQty += e.Quantity
				sellTot += e.Quantity*e.Price - e.Commission
			case "Buy":
				buys++
				buyQty += e.Quantity
				buyTotal += e.Quantity*e.Price + e.Commission
			default:
				return Reconciliation{}, &InvalidTransactionTypeError{
					Symbol:          symbol,
					TransactionType: e.TransactionType,
				}
			}
		}

		if buys == 0 || sells == 0 {
			side := "Buy"
			if buys > 0 {
				side = "Sell"
			}
			return Reconciliation{}, &MissingSideError{Symbol: symbol, Side: side}
		}
		if math.Abs(buyQty-sellQty) > quantityTolerance {
			return Reconciliation{}, &QuantityMismatchError{
				Symbol:       symbol,
				BuyQuantity:  buyQty,
				SellQuantity: sellQty,
			}
		}

		profit := sellTot - buyTotal
		rec.BySymbol[symbol] = profit
		rec.Profit += profit
		rec.Trades++
	}

	return rec, nil
}
