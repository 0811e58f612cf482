package orders

type Status string

const (
	StatusPendingApproval Status = "pending_admin_approval"
	StatusApproved        Status = "approved"
	StatusProcessing      Status = "processing"
	StatusReadyForPickup  Status = "ready_for_pickup"
	StatusShipped         Status = "shipped"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// Action is a requested lifecycle operation against an order.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionCancel          Action = "cancel"
	ActionStartProcessing Action = "start_processing"
	ActionReady           Action = "ready"
	ActionShip            Action = "ship"
	ActionComplete        Action = "complete"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusProcessing,
		StatusReadyForPickup, StatusShipped, StatusCompleted,
		StatusCancelled, StatusRejected:
		return true
	}
	return false
}

type transition struct {
	next     Status
	releases bool
}

// validNext: current status -> action -> outcome.
// Cancelling after shipment keeps the deduction: the goods already left
// inventory, so no release happens on that path.
var validNext = map[Status]map[Action]transition{
	StatusPendingApproval: {
		ActionApprove: {StatusApproved, false},
		ActionReject:  {StatusRejected, true},
		ActionCancel:  {StatusCancelled, true},
	},
	StatusApproved: {
		ActionStartProcessing: {StatusProcessing, false},
		ActionReady:           {StatusReadyForPickup, false},
		ActionShip:            {StatusShipped, false},
		ActionComplete:        {StatusCompleted, false},
		ActionCancel:          {StatusCancelled, true},
	},
	StatusProcessing: {
		ActionReady:  {StatusReadyForPickup, false},
		ActionShip:   {StatusShipped, false},
		ActionCancel: {StatusCancelled, true},
	},
	StatusReadyForPickup: {
		ActionShip:     {StatusShipped, false},
		ActionComplete: {StatusCompleted, false},
		ActionCancel:   {StatusCancelled, true},
	},
	StatusShipped: {
		ActionComplete: {StatusCompleted, false},
		ActionCancel:   {StatusCancelled, false},
	},
	// terminal: completed, cancelled, rejected have no entries
}

// Next returns the status an action leads to from current, and whether the
// transition returns reserved stock to the ledger. Pure function, no side
// effects; the lifecycle service acts on releasesStock.
func Next(current Status, action Action) (next Status, releasesStock bool, err error) {
	if current.IsTerminal() {
		return "", false, ErrOrderAlreadyTerminal
	}
	t, ok := validNext[current][action]
	if !ok {
		return "", false, &InvalidTransitionError{From: current, Action: action}
	}
	return t.next, t.releases, nil
}
