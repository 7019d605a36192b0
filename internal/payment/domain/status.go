package domain

// Status represents the lifecycle state of a payment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// IsTerminal returns true if no further transition is possible from the status,
// except the single allowed Completed -> Refunded path.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusRefunded
}

// CanTransitionTo returns true if the status may move to the target status.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCompleted ||
			target == StatusFailed || target == StatusCancelled
	case StatusProcessing:
		return target == StatusCompleted || target == StatusFailed || target == StatusCancelled
	case StatusCompleted:
		return target == StatusRefunded
	case StatusFailed, StatusCancelled, StatusRefunded:
		return false
	default:
		return false
	}
}

// IsValid returns true for a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Method represents how a payment is made.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCheck        Method = "check"
	MethodBankTransfer Method = "bank_transfer"
	MethodCreditCard   Method = "credit_card"
	MethodOnline       Method = "online"
)

// IsValid returns true for a known payment method.
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodCheck, MethodBankTransfer, MethodCreditCard, MethodOnline:
		return true
	}
	return false
}

// RequiresGateway returns true if the method is captured through the
// external payment provider rather than recorded manually.
func (m Method) RequiresGateway() bool {
	return m == MethodCreditCard || m == MethodOnline
}
