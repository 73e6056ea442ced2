package orders

import "strings"

type Status string

const (
	StatusPending   Status = "en attente"
	StatusConfirmed Status = "confirmé"
	StatusShipping  Status = "en livraison"
	StatusDelivered Status = "livré"
	StatusReturned  Status = "retour"
	StatusCancelled Status = "annulé"
)

// Statuses lists every recognised status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusShipping,
	StatusDelivered,
	StatusReturned,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.TrimSpace(s))
	return st, st.Valid()
}

// Restocks reports whether moving an order from one status to another
// gives its stock back. Only entering the cancelled state does; staying
// cancelled does not, so repeated cancellation never restocks twice.
func Restocks(from, to Status) bool {
	return to == StatusCancelled && from != StatusCancelled
}

// Reopens reports whether a transition would bring a cancelled order back
// to an active status. Cancelled is final: the stock it gave back is never
// taken again, so reopening is refused.
func Reopens(from, to Status) bool {
	return from == StatusCancelled && to != StatusCancelled
}
