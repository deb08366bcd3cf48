package domain

// GroupOrders groups lines by order identifier, preserving first-seen
// input order. An order is multi-item when it carries more than one line;
// its verdict mirrors its lines' (all lines of an order share one
// fulfillability flag).
func GroupOrders(lines []OrderLine) []Order {
	index := map[string]int{}
	var orders []Order
	for i, l := range lines {
		pos, ok := index[l.OrderID]
		if !ok {
			pos = len(orders)
			index[l.OrderID] = pos
			orders = append(orders, Order{ID: l.OrderID, Fulfillable: l.Fulfillable})
		}
		orders[pos].Lines = append(orders[pos].Lines, i)
	}
	for i := range orders {
		orders[i].MultiItem = len(orders[i].Lines) > 1
	}
	return orders
}
