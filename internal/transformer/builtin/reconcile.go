package builtin

import "salesetl/internal/sales"

// Reconcile repairs sale keys whose store segment disagrees with the store
// id column. The store id is authoritative: on divergence the key becomes
// store_id + "|" + coupon and the coupon segment is kept verbatim. Both
// sides are compared as text, so "007" and "7" differ.
//
// It returns the batch without the transient segments and the number of
// keys rewritten.
func Reconcile(in []SplitSale) ([]sales.Sale, int) {
	out := make([]sales.Sale, len(in))
	repaired := 0
	for i, s := range in {
		out[i] = s.Sale
		if s.StoreID != s.StoreSegment {
			out[i].SaleKey = sales.JoinKey(s.StoreID, s.CouponSegment)
			repaired++
		}
	}
	return out, repaired
}
