package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/sku"
)

// Simulate allocates stock across a batch of orders and returns the
// annotated lines, the final ledger and aggregate statistics. It is a
// pure computation: inputs are copied, the ledger is owned by the
// returned run, and no state is shared with other runs.
//
// Multi-item orders are allocated before single-item orders, preserving
// input order within each group. Multi-item orders are the hard ones to
// backfill later, so they get first claim on stock; this is observable
// policy, not an optimization.
func Simulate(lines []domain.OrderLine, stock []domain.StockRecord, history []domain.HistoryRecord, repeatNote string) *domain.Run {
	run := &domain.Run{
		Lines:  make([]domain.OrderLine, len(lines)),
		Ledger: domain.Ledger{},
	}
	copy(run.Lines, lines)

	// Single point of SKU entry: every identifier is canonicalized here,
	// never ad hoc downstream.
	for i := range run.Lines {
		run.Lines[i].SKU = sku.Normalize(run.Lines[i].SKU)
		run.Lines[i].Fulfillable = false
	}
	names := map[string]string{}
	for _, s := range stock {
		key := sku.Normalize(s.SKU)
		run.Ledger[key] += s.Quantity
		if s.ProductName != "" {
			names[key] = s.ProductName
		}
	}

	// SKUs ordered but absent from stock start at zero so a deficit
	// stays visible.
	for _, l := range run.Lines {
		if _, ok := run.Ledger[l.SKU]; !ok {
			run.Ledger[l.SKU] = 0
		}
	}
	for i := range run.Lines {
		if run.Lines[i].ProductName == "" {
			run.Lines[i].ProductName = names[run.Lines[i].SKU]
		}
	}

	run.Orders = domain.GroupOrders(run.Lines)
	invalid := flagInvalidOrders(run)

	// Allocation pass: multi-item orders first, then single-item, each
	// group in input order.
	for _, phase := range []bool{true, false} {
		for oi := range run.Orders {
			o := &run.Orders[oi]
			if o.MultiItem != phase || invalid[o.ID] {
				continue
			}
			// Demand is summed per SKU first: an order carrying the same
			// SKU on several lines must fit as a whole, not line by line.
			demand := map[string]int{}
			for _, li := range o.Lines {
				demand[run.Lines[li].SKU] += run.Lines[li].Quantity
			}
			fits := true
			for key, qty := range demand {
				if qty > run.Ledger[key] {
					fits = false
					break
				}
			}
			if !fits {
				continue
			}
			o.Fulfillable = true
			for _, li := range o.Lines {
				run.Lines[li].Fulfillable = true
				run.Ledger[run.Lines[li].SKU] -= run.Lines[li].Quantity
			}
		}
	}

	annotateRepeats(run, history, repeatNote)
	run.Stats = computeStats(run, names)
	return run
}

// flagInvalidOrders records a data error for every line with an unusable
// quantity and keeps its whole order out of allocation. Lines flagged by
// the loader arrive with the note already set; negative quantities can
// also arrive straight from the API and are caught here, since allocating
// them would mint stock instead of consuming it.
func flagInvalidOrders(run *domain.Run) map[string]bool {
	invalid := map[string]bool{}
	for i := range run.Lines {
		l := &run.Lines[i]
		reason := ""
		switch {
		case l.SystemNote == domain.NoteInvalidQuantity:
			reason = "malformed quantity, order not allocated"
		case l.Quantity < 0:
			l.SystemNote = domain.NoteInvalidQuantity
			reason = "negative quantity, order not allocated"
		default:
			continue
		}
		invalid[l.OrderID] = true
		run.DataErrors = append(run.DataErrors, domain.DataError{
			Row: i, Field: "quantity", Reason: reason,
		})
	}
	return invalid
}

// annotateRepeats marks order+SKU pairs previously fulfilled. History
// SKUs pass through the same normalization as everything else or repeat
// detection silently fails on numeric artifacts.
func annotateRepeats(run *domain.Run, history []domain.HistoryRecord, repeatNote string) {
	if repeatNote == "" {
		repeatNote = "repeat order"
	}
	seen := map[string]bool{}
	for _, h := range history {
		if h.Fulfilled {
			seen[h.OrderID+"\x00"+sku.Normalize(h.SKU)] = true
		}
	}
	if len(seen) == 0 {
		return
	}
	for i := range run.Lines {
		l := &run.Lines[i]
		if !seen[l.OrderID+"\x00"+l.SKU] {
			continue
		}
		if l.SystemNote == "" {
			l.SystemNote = repeatNote
		} else {
			l.SystemNote = l.SystemNote + "; " + repeatNote
		}
	}
}

// computeStats derives counts, monetary values by fulfillability and
// shipping method, and the missing-stock subset from the run's current
// verdicts and ledger. Toggling re-derives through the same function so
// statistics never drift from the ledger.
func computeStats(run *domain.Run, names map[string]string) domain.Stats {
	stats := domain.Stats{
		TotalOrders: len(run.Orders),
		ByShipping:  map[string]domain.ShippingStats{},
	}
	for _, o := range run.Orders {
		value := decimal.Zero
		shipping := ""
		for _, li := range o.Lines {
			value = value.Add(run.Lines[li].LineTotal)
			if shipping == "" {
				shipping = run.Lines[li].ShippingMethod
			}
		}
		if shipping == "" {
			shipping = "unspecified"
		}
		byShip := stats.ByShipping[shipping]
		byShip.Orders++
		byShip.Value = byShip.Value.Add(value)
		if o.Fulfillable {
			stats.FulfillableOrders++
			stats.FulfillableValue = stats.FulfillableValue.Add(value)
			byShip.Fulfillable++
		} else {
			stats.UnfulfillableOrders++
			stats.UnfulfillableValue = stats.UnfulfillableValue.Add(value)
			byShip.Unfulfillable++
		}
		stats.ByShipping[shipping] = byShip
	}
	stats.MissingStock = missingStock(run, names)
	return stats
}

// missingStock summarizes deficits: only lines whose quantity strictly
// exceeds the remaining balance count, not every line of an unfulfillable
// order.
func missingStock(run *domain.Run, names map[string]string) []domain.MissingStock {
	shorts := map[string]*domain.MissingStock{}
	for _, o := range run.Orders {
		if o.Fulfillable {
			continue
		}
		for _, li := range o.Lines {
			l := run.Lines[li]
			available := run.Ledger[l.SKU]
			if available < 0 {
				available = 0
			}
			if l.Quantity <= available {
				continue
			}
			m, ok := shorts[l.SKU]
			if !ok {
				m = &domain.MissingStock{SKU: l.SKU, ProductName: names[l.SKU], Available: available}
				if m.ProductName == "" {
					m.ProductName = l.ProductName
				}
				shorts[l.SKU] = m
			}
			m.Requested += l.Quantity
			m.Short += l.Quantity - available
		}
	}
	if len(shorts) == 0 {
		return nil
	}
	out := make([]domain.MissingStock, 0, len(shorts))
	for _, m := range shorts {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

func productNames(run *domain.Run) map[string]string {
	names := map[string]string{}
	for _, l := range run.Lines {
		if l.ProductName != "" {
			names[l.SKU] = l.ProductName
		}
	}
	return names
}
