package partition

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// PartitionLeaderEpoch fences commands to the leadership term that produced
// them. Commands carrying a stale epoch must be rejected upstream, before
// they ever reach Apply.
type PartitionLeaderEpoch struct {
	PartitionID uint32
	LeaderEpoch uint64
}

// ServiceID identifies a stateful entity: a service name plus an opaque key.
type ServiceID struct {
	ServiceName string
	Key         []byte
}

func (s ServiceID) String() string {
	return fmt.Sprintf("%s/%s", s.ServiceName, hex.EncodeToString(s.Key))
}

// cacheKey returns a value usable as a map key for ServiceID.
func (s ServiceID) cacheKey() string {
	return s.ServiceName + "\x00" + string(s.Key)
}

// InvocationID is an opaque 128-bit value, unique per invocation attempt.
type InvocationID [16]byte

func (id InvocationID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value (used as a "no invocation"
// sentinel in InvocationStatus).
func (id InvocationID) IsZero() bool {
	return id == InvocationID{}
}

// NewInvocationID generates a fresh random InvocationID. Callers upstream of
// the partition processor (ingress, clients replaying a fixture by hand) use
// this to mint an ID before a ServiceInvocation command ever reaches Apply;
// the state machine itself never calls this, since Apply must stay
// deterministic given the commands it is handed.
func NewInvocationID() InvocationID {
	return InvocationID(uuid.New())
}

// ServiceInvocationID pairs a ServiceID with the InvocationID of one attempt
// to invoke it.
type ServiceInvocationID struct {
	ServiceID    ServiceID
	InvocationID InvocationID
}

// EntryIndex is a zero-based position in a journal.
type EntryIndex uint32

// JournalRevision is a monotonically increasing counter bumped on every
// appended entry and on every stored completion.
type JournalRevision uint64

// InvocationStatusKind discriminates the three states a ServiceID can be in.
type InvocationStatusKind int

const (
	// StatusFree means no running invocation; a new invocation starts
	// immediately.
	StatusFree InvocationStatusKind = iota
	// StatusInvoked means the invoker holds this invocation; its journal
	// may still grow.
	StatusInvoked
	// StatusSuspended means the invocation is awaiting completions; its
	// journal is frozen.
	StatusSuspended
)

// InvocationStatus is the per-ServiceID status record read through
// StateReader.
type InvocationStatus struct {
	Kind         InvocationStatusKind
	InvocationID InvocationID    // zero value when Kind == StatusFree
	ResponseTarget *ResponseTarget // nil when this invocation has no caller awaiting a reply
}

// ResponseTarget addresses the caller awaiting a response to an Invoke
// journal entry: the invoking ServiceInvocationID and the EntryIndex of the
// Invoke entry that created the expectation.
type ResponseTarget struct {
	ServiceInvocationID ServiceInvocationID
	EntryIndex          EntryIndex
}

// InvokeRequest is the decoded payload of an Invoke or BackgroundInvoke
// journal entry.
type InvokeRequest struct {
	ServiceName string
	MethodName  string
	Argument    []byte
}

// ServiceInvocation is a request to invoke a ServiceID, either arriving
// externally (ingress) or produced by a journal entry.
type ServiceInvocation struct {
	ID             ServiceInvocationID
	MethodName     string
	Argument       []byte
	ResponseTarget *ResponseTarget // nil for BackgroundInvoke-originated invocations
}

// CompletionResultKind discriminates a successful completion from a failure.
type CompletionResultKind int

const (
	ResultSuccess CompletionResultKind = iota
	ResultFailure
)

// CompletionResult is the outcome value carried by a Completion or a final
// Response.
type CompletionResult struct {
	Kind    CompletionResultKind
	Value   []byte // set when Kind == ResultSuccess
	Code    uint16 // set when Kind == ResultFailure
	Message string // set when Kind == ResultFailure
}

// Completion addresses a result to a specific journal entry awaiting it.
type Completion struct {
	EntryIndex EntryIndex
	Result     CompletionResult
}

// Response is an external completion delivered for a ServiceInvocationID,
// e.g. from a service endpoint's reply.
type Response struct {
	ID         ServiceInvocationID
	EntryIndex EntryIndex
	Result     CompletionResult
}

// JournalStatus is the journal metadata exposed by StateReader.
type JournalStatus struct {
	Revision JournalRevision
	Length   uint32
}

// EntryType tags the kind of a RawEntry, mirroring the journal wire format.
type EntryType int

const (
	EntryInvoke EntryType = iota
	EntryBackgroundInvoke
	EntryCompleteAwakeable
	EntrySetState
	EntryClearState
	EntrySleep
	EntryGetState
	EntryPollInputStream
	EntryOutputStream
	EntryAwakeable
	EntryCustom
)

// RawEntry is an opaque journal entry as appended by the invoker; its Kind
// fields carry the pieces the state machine needs without a general-purpose
// codec, since EntryType is already known at dispatch time.
type RawEntry struct {
	Type EntryType

	// Invoke / BackgroundInvoke
	Request InvokeRequest

	// CompleteAwakeable
	AwakeableTarget ServiceInvocationID
	AwakeableIndex  EntryIndex
	AwakeableResult CompletionResult

	// SetState / ClearState
	Key   []byte
	Value []byte // SetState only

	// Sleep
	WakeUpTime uint64

	// raw bytes as they will be persisted verbatim by append_journal_entry
	Payload []byte
}
