package partition

// EffectKind tags a single intended mutation emitted by the state machine.
type EffectKind int

const (
	EffectInvokeService EffectKind = iota
	EffectEnqueueIntoInbox
	EffectPopInbox
	EffectSetState
	EffectClearState
	EffectStoreAndForwardCompletion
	EffectStoreCompletion
	EffectAppendJournalEntry
	EffectAppendAwakeableEntry
	EffectRegisterTimer
	EffectDeleteTimer
	EffectResumeService
	EffectSuspendService
	EffectDropJournal
	EffectFreeService
	EffectEnqueueIntoOutbox
	EffectTruncateOutbox
)

// String names an effect kind for logging and metric labels.
func (k EffectKind) String() string {
	switch k {
	case EffectInvokeService:
		return "invoke_service"
	case EffectEnqueueIntoInbox:
		return "enqueue_into_inbox"
	case EffectPopInbox:
		return "pop_inbox"
	case EffectSetState:
		return "set_state"
	case EffectClearState:
		return "clear_state"
	case EffectStoreAndForwardCompletion:
		return "store_and_forward_completion"
	case EffectStoreCompletion:
		return "store_completion"
	case EffectAppendJournalEntry:
		return "append_journal_entry"
	case EffectAppendAwakeableEntry:
		return "append_awakeable_entry"
	case EffectRegisterTimer:
		return "register_timer"
	case EffectDeleteTimer:
		return "delete_timer"
	case EffectResumeService:
		return "resume_service"
	case EffectSuspendService:
		return "suspend_service"
	case EffectDropJournal:
		return "drop_journal"
	case EffectFreeService:
		return "free_service"
	case EffectEnqueueIntoOutbox:
		return "enqueue_into_outbox"
	case EffectTruncateOutbox:
		return "truncate_outbox"
	default:
		return "unknown"
	}
}

// OutboxMessageKind discriminates the two shapes an OutboxMessage can take.
type OutboxMessageKind int

const (
	OutboxInvocation OutboxMessageKind = iota
	OutboxResponse
)

// OutboxMessage is the payload of an enqueue_into_outbox effect.
type OutboxMessage struct {
	Kind       OutboxMessageKind
	Invocation ServiceInvocation // set when Kind == OutboxInvocation
	Response   Response          // set when Kind == OutboxResponse
}

// Effect is a single tagged mutation. Only the fields relevant to Kind are
// populated; the rest are zero. This flat shape avoids an interface and a
// type switch at the consumer, matching the reusable-buffer design in
// spec.md §4.G / §9.
type Effect struct {
	Kind EffectKind

	ServiceID  ServiceID
	EntryIndex EntryIndex

	InboxSeq   uint64
	OutboxSeq  uint64
	ServiceInv ServiceInvocation

	Key   []byte
	Value []byte

	ServiceInvID ServiceInvocationID
	Completion   Completion
	Entry        RawEntry

	WakeUpTime uint64

	OutboxMsg OutboxMessage

	TruncateIndex uint64
}

// Effects is an append-only, reusable batch collector. The state machine
// never retains it across calls; the applier drains it after a durable
// write and calls Reset to recycle the backing array.
type Effects struct {
	buf []Effect
}

// NewEffects returns an Effects buffer with capacity for n entries, sized to
// the common case so the hot path rarely reallocates.
func NewEffects(capacity int) *Effects {
	return &Effects{buf: make([]Effect, 0, capacity)}
}

// Reset truncates the buffer to zero length without shrinking capacity.
func (e *Effects) Reset() {
	e.buf = e.buf[:0]
}

// Len reports the number of effects currently buffered.
func (e *Effects) Len() int {
	return len(e.buf)
}

// All returns the buffered effects. The slice is only valid until the next
// Reset.
func (e *Effects) All() []Effect {
	return e.buf
}

func (e *Effects) push(ef Effect) {
	e.buf = append(e.buf, ef)
}

func (e *Effects) invokeService(si ServiceInvocation) {
	e.push(Effect{Kind: EffectInvokeService, ServiceInv: si})
}

func (e *Effects) enqueueIntoInbox(seq uint64, si ServiceInvocation) {
	e.push(Effect{Kind: EffectEnqueueIntoInbox, InboxSeq: seq, ServiceInv: si})
}

func (e *Effects) popInbox(serviceID ServiceID, seq uint64) {
	e.push(Effect{Kind: EffectPopInbox, ServiceID: serviceID, InboxSeq: seq})
}

func (e *Effects) setState(serviceID ServiceID, key, value []byte) {
	e.push(Effect{Kind: EffectSetState, ServiceID: serviceID, Key: key, Value: value})
}

func (e *Effects) clearState(serviceID ServiceID, key []byte) {
	e.push(Effect{Kind: EffectClearState, ServiceID: serviceID, Key: key})
}

func (e *Effects) storeAndForwardCompletion(sid ServiceInvocationID, c Completion) {
	e.push(Effect{Kind: EffectStoreAndForwardCompletion, ServiceInvID: sid, Completion: c})
}

func (e *Effects) storeCompletion(sid ServiceInvocationID, c Completion) {
	e.push(Effect{Kind: EffectStoreCompletion, ServiceInvID: sid, Completion: c})
}

func (e *Effects) appendJournalEntry(sid ServiceInvocationID, idx EntryIndex, entry RawEntry) {
	e.push(Effect{Kind: EffectAppendJournalEntry, ServiceInvID: sid, EntryIndex: idx, Entry: entry})
}

func (e *Effects) appendAwakeableEntry(sid ServiceInvocationID, idx EntryIndex, entry RawEntry) {
	e.push(Effect{Kind: EffectAppendAwakeableEntry, ServiceInvID: sid, EntryIndex: idx, Entry: entry})
}

func (e *Effects) registerTimer(wakeUpTime uint64, sid ServiceInvocationID, idx EntryIndex) {
	e.push(Effect{Kind: EffectRegisterTimer, WakeUpTime: wakeUpTime, ServiceInvID: sid, EntryIndex: idx})
}

func (e *Effects) deleteTimer(wakeUpTime uint64, serviceID ServiceID, idx EntryIndex) {
	e.push(Effect{Kind: EffectDeleteTimer, WakeUpTime: wakeUpTime, ServiceID: serviceID, EntryIndex: idx})
}

func (e *Effects) resumeService(sid ServiceInvocationID) {
	e.push(Effect{Kind: EffectResumeService, ServiceInvID: sid})
}

func (e *Effects) suspendService(sid ServiceInvocationID) {
	e.push(Effect{Kind: EffectSuspendService, ServiceInvID: sid})
}

func (e *Effects) dropJournal(serviceID ServiceID) {
	e.push(Effect{Kind: EffectDropJournal, ServiceID: serviceID})
}

func (e *Effects) freeService(serviceID ServiceID) {
	e.push(Effect{Kind: EffectFreeService, ServiceID: serviceID})
}

func (e *Effects) enqueueIntoOutbox(seq uint64, msg OutboxMessage) {
	e.push(Effect{Kind: EffectEnqueueIntoOutbox, OutboxSeq: seq, OutboxMsg: msg})
}

func (e *Effects) truncateOutbox(index uint64) {
	e.push(Effect{Kind: EffectTruncateOutbox, TruncateIndex: index})
}
