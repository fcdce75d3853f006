package partition

// StateReader is the read-only view of durable partition state that Apply
// consults while computing effects. Implementations must reflect every
// effect from a prior Apply call before the next Apply call observes them;
// the caller is responsible for applying effects before advancing.
type StateReader interface {
	// GetInvocationStatus returns the current status of serviceID. A
	// ServiceID with no history returns StatusFree and a zero InvocationID.
	GetInvocationStatus(serviceID ServiceID) (InvocationStatus, error)

	// PeekInbox returns the lowest-sequence pending invocation for
	// serviceID without removing it. ok is false when the inbox is empty.
	PeekInbox(serviceID ServiceID) (seq uint64, inv ServiceInvocation, ok bool, err error)

	// GetJournalStatus returns the journal metadata for serviceID. A
	// ServiceID with no journal returns a zero JournalStatus.
	GetJournalStatus(serviceID ServiceID) (JournalStatus, error)
}
