package orders

// Status shipping persisted as-is di kolom status_shipping.
type Status string

const (
	StatusAwaitingPayment Status = "awaitingPayment"
	StatusPrepared        Status = "prepared"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelPending   Status = "cancelPending"
	StatusCancelled       Status = "cancelled"
)

// Party identifies which side of an order is acting.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusPrepared, StatusShipped,
		StatusDelivered, StatusCancelPending, StatusCancelled:
		return true
	}
	return false
}

// Terminal: tidak ada transisi keluar dari delivered/cancelled.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// advanceNext: forward shipping moves, seller-only.
var advanceNext = map[Status]Status{
	StatusPrepared: StatusShipped,
	StatusShipped:  StatusDelivered,
}

// cancellable: states where either party may open a cancel request.
var cancellable = map[Status]bool{
	StatusAwaitingPayment: true,
	StatusPrepared:        true,
	StatusShipped:         true,
}

// Change is the outcome of a guard evaluation: the compare-and-set the
// store must apply. From is the status the caller observed; the write only
// succeeds if the row still holds it.
type Change struct {
	From        Status
	To          Status
	CancelBy    *Party
	PriorStatus *Status
	Restock     bool
}

// ApprovePayment: seller accepts the proof of payment.
func ApprovePayment(cur Status) (Change, error) {
	if cur != StatusAwaitingPayment {
		return Change{}, ErrInvalidTransition
	}
	return Change{From: cur, To: StatusPrepared}, nil
}

// RejectPayment: seller refuses the proof; order dies and stock goes back.
func RejectPayment(cur Status) (Change, error) {
	if cur != StatusAwaitingPayment {
		return Change{}, ErrInvalidTransition
	}
	seller := PartySeller
	return Change{From: cur, To: StatusCancelled, CancelBy: &seller, Restock: true}, nil
}

// Advance moves shipping forward one step (prepared->shipped->delivered).
func Advance(cur, to Status) (Change, error) {
	if advanceNext[cur] != to {
		return Change{}, ErrInvalidTransition
	}
	return Change{From: cur, To: to}, nil
}

// RequestCancel opens a cancellation request by either party. The current
// status is remembered so a denial can restore it.
func RequestCancel(cur Status, by Party) (Change, error) {
	if !cancellable[cur] {
		return Change{}, ErrInvalidTransition
	}
	prior := cur
	return Change{From: cur, To: StatusCancelPending, CancelBy: &by, PriorStatus: &prior}, nil
}

// ResolveCancel closes a pending cancellation. Only the party other than
// cancel_by may resolve it; approval cancels and restocks, denial restores
// the remembered prior status and clears cancel_by.
func ResolveCancel(cur Status, cancelBy *Party, prior *Status, actor Party, approve bool) (Change, error) {
	if cur != StatusCancelPending || cancelBy == nil {
		return Change{}, ErrInvalidTransition
	}
	if actor == *cancelBy {
		return Change{}, ErrForbidden
	}
	if approve {
		return Change{From: cur, To: StatusCancelled, CancelBy: cancelBy, Restock: true}, nil
	}
	if prior == nil || !prior.Valid() {
		return Change{}, ErrInvalidTransition
	}
	return Change{From: cur, To: *prior}, nil
}
