package accesslog

// OrdersCount resolves the order-count snapshot to record for an access
// event.
//
// The platform's order-count field moved between API versions, so a live
// lookup may populate either the direct field or the connection-derived one;
// the larger of the two wins. The previous snapshot is used only when no
// live data is available at all: a live lookup that genuinely returns zero
// orders yields zero, it does not fall back.
func OrdersCount(direct, viaConnection, previous int64, live bool) int64 {
	if !live {
		return previous
	}
	if direct >= viaConnection {
		return direct
	}
	return viaConnection
}
