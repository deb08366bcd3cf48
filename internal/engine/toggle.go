package engine

import (
	"fmt"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

// ToggleOrder flips one order's fulfillability verdict and re-derives the
// ledger and statistics consistently.
//
// Toggling to fulfillable pre-flight checks the order's aggregate demand
// per SKU against the ledger and fails with a ConflictError naming the
// first insufficient SKU, leaving everything untouched; force waives the
// check so an operator can push an order through into a visible negative
// balance.
// Toggling to not-fulfillable reverses the original deduction exactly.
// Repeating a toggle to the same target state is a no-op.
func ToggleOrder(run *domain.Run, orderID string, fulfillable, force bool) error {
	var order *domain.Order
	for i := range run.Orders {
		if run.Orders[i].ID == orderID {
			order = &run.Orders[i]
			break
		}
	}
	if order == nil {
		return fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	if order.Fulfillable == fulfillable {
		return nil // idempotent
	}

	if fulfillable {
		// Demand is summed per SKU so an order carrying the same SKU on
		// several lines is checked as a whole. Deductions land on a clone
		// and only replace the ledger once the order is through, so a
		// failed pre-flight leaves everything untouched.
		demand := map[string]int{}
		for _, li := range order.Lines {
			demand[run.Lines[li].SKU] += run.Lines[li].Quantity
		}
		next := run.Ledger.Clone()
		if !force {
			seen := map[string]bool{}
			for _, li := range order.Lines {
				key := run.Lines[li].SKU
				if seen[key] {
					continue
				}
				seen[key] = true
				if demand[key] > next[key] {
					return domain.ConflictError{
						OrderID:   orderID,
						SKU:       key,
						Requested: demand[key],
						Available: next[key],
					}
				}
			}
		}
		// SKUs absent from the original stock set enter the ledger here
		// so a forced fulfillment leaves a visible deficit.
		for key, qty := range demand {
			next[key] -= qty
		}
		for _, li := range order.Lines {
			run.Lines[li].Fulfillable = true
		}
		run.Ledger = next
	} else {
		for _, li := range order.Lines {
			run.Ledger[run.Lines[li].SKU] += run.Lines[li].Quantity
			run.Lines[li].Fulfillable = false
		}
	}
	order.Fulfillable = fulfillable
	run.Stats = computeStats(run, productNames(run))
	return nil
}
