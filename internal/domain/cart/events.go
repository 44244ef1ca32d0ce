package cart

const (
	EventItemAdded        = "ItemAddedToCart"
	EventItemRemoved      = "ItemRemovedFromCart"
	EventQuantityChanged  = "CartQuantityChanged"
	EventSelectionChanged = "CartSelectionChanged"
	EventCartCleared      = "CartCleared"
	EventLinesCommitted   = "CartLinesCommitted"
	EventCartRestored     = "CartRestored"
)

// Change is delivered to listeners after every committed mutation.
type Change struct {
	Kind     string   `json:"kind"`
	Snapshot Snapshot `json:"snapshot"`
}

type Listener func(Change)
