package shop

import "fmt"

// Summary renders a one-line description of an order.
func Summary(o Order) string {
	return fmt.Sprintf("%s: %s (%d)", o.ID, o.Customer, o.Total)
}
