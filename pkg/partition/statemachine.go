package partition

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/partitiond/pkg/log"
	"github.com/cuemby/partitiond/pkg/metrics"
)

// StateMachine is the deterministic, single-threaded-per-partition core.
// It holds only the two sequence counters; everything else it needs comes
// from the StateReader passed into Apply. A StateMachine must never be
// shared across partitions and Apply must never be called concurrently
// with itself.
type StateMachine struct {
	inboxSeqNumber  uint64
	outboxSeqNumber uint64

	logger zerolog.Logger
}

// New constructs a StateMachine seeded with the inbox/outbox sequence
// counters recovered from durable state (or zero, for a fresh partition).
func New(initialInbox, initialOutbox uint64) *StateMachine {
	return &StateMachine{
		inboxSeqNumber:  initialInbox,
		outboxSeqNumber: initialOutbox,
		logger:          log.WithComponent("state_machine"),
	}
}

// InboxSeqNumber returns the next sequence number that will be assigned to
// an inbox entry.
func (sm *StateMachine) InboxSeqNumber() uint64 { return sm.inboxSeqNumber }

// OutboxSeqNumber returns the next sequence number that will be assigned to
// an outbox entry.
func (sm *StateMachine) OutboxSeqNumber() uint64 { return sm.outboxSeqNumber }

// Apply processes a single Command against the given read view, appending
// the resulting mutations to effects. Apply performs no I/O: every read
// goes through state, every write becomes an effect. It panics on an
// InvariantViolation, since continuing to apply commands after observing
// corrupt or out-of-order journal state risks replaying into a state that
// diverges from any other replica that already panicked at the same point.
func (sm *StateMachine) Apply(cmd Command, state StateReader, effects *Effects) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ApplyDuration)

	before := effects.Len()
	var err error

	switch cmd.Kind {
	case CommandInvocation:
		err = sm.applyInvocation(cmd, state, effects)
	case CommandResponse:
		err = sm.applyResponse(cmd, state, effects)
	case CommandInvokerJournalEntry:
		err = sm.applyJournalEntry(cmd, state, effects)
	case CommandInvokerSuspended:
		err = sm.applySuspended(cmd, state, effects)
	case CommandInvokerEnd:
		err = sm.applyEnd(cmd, state, effects)
	case CommandInvokerFailed:
		err = sm.applyFailed(cmd, state, effects)
	case CommandOutboxTruncation:
		sm.applyOutboxTruncation(cmd, effects)
	case CommandTimer:
		err = sm.applyTimer(cmd, state, effects)
	default:
		metrics.CommandsDroppedTotal.WithLabelValues("unknown_kind").Inc()
		return fmt.Errorf("unknown command kind %d", cmd.Kind)
	}

	if err != nil {
		return err
	}

	for _, ef := range effects.All()[before:] {
		metrics.EffectsEmittedTotal.WithLabelValues(ef.Kind.String()).Inc()
	}

	sm.logger.Debug().
		Str("command", cmd.Kind.String()).
		Int("effects", effects.Len()-before).
		Msg("apply")

	return nil
}

// applyInvocation handles a new ServiceInvocation: either start it
// immediately (StatusFree) or enqueue it into the inbox behind the current
// invocation.
func (sm *StateMachine) applyInvocation(cmd Command, state StateReader, effects *Effects) error {
	inv := cmd.Invocation
	status, err := sm.getStatus(state, inv.ID.ServiceID)
	if err != nil {
		return err
	}

	if status.Kind == StatusFree {
		effects.invokeService(inv)
		return nil
	}

	seq := sm.inboxSeqNumber
	sm.inboxSeqNumber++
	effects.enqueueIntoInbox(seq, inv)
	return nil
}

// applyResponse routes an externally-delivered Response to the journal
// entry awaiting it, resuming the invocation first if it is suspended.
func (sm *StateMachine) applyResponse(cmd Command, state StateReader, effects *Effects) error {
	return sm.handleCompletion(cmd.Response.ID, Completion{
		EntryIndex: cmd.Response.EntryIndex,
		Result:     cmd.Response.Result,
	}, state, effects)
}

// applyJournalEntry appends a new entry produced by the invoker for an
// invocation currently in StatusInvoked, dispatching on entry type for the
// handful of entries that also demand a side effect beyond the append
// itself (inbox/outbox traffic, state mutation, timer registration).
func (sm *StateMachine) applyJournalEntry(cmd Command, state StateReader, effects *Effects) error {
	sid := cmd.InvokerTarget
	status, err := sm.getStatus(state, sid.ServiceID)
	if err != nil {
		return err
	}
	if status.Kind != StatusInvoked || status.InvocationID != sid.InvocationID {
		metrics.CommandsDroppedTotal.WithLabelValues("stale_invoker_entry").Inc()
		return nil
	}

	js, err := state.GetJournalStatus(sid.ServiceID)
	if err != nil {
		return &StateError{ServiceID: sid.ServiceID, Op: "GetJournalStatus", Cause: err}
	}
	if cmd.EntryIndex != EntryIndex(js.Length)+1 {
		panic(&InvariantViolation{Detail: fmt.Sprintf(
			"journal density violated for %s: entry_index=%d journal_length=%d",
			sid.ServiceID, cmd.EntryIndex, js.Length)})
	}

	entry := cmd.Entry
	switch entry.Type {
	case EntryInvoke:
		return sm.applyInvokeEntry(sid, cmd.EntryIndex, entry, effects, false)
	case EntryBackgroundInvoke:
		return sm.applyInvokeEntry(sid, cmd.EntryIndex, entry, effects, true)
	case EntryCompleteAwakeable:
		effects.appendJournalEntry(sid, cmd.EntryIndex, entry)
		sm.sendMessage(OutboxMessage{
			Kind: OutboxResponse,
			Response: Response{
				ID:         entry.AwakeableTarget,
				EntryIndex: entry.AwakeableIndex,
				Result:     entry.AwakeableResult,
			},
		}, effects)
		return nil
	case EntrySetState:
		effects.appendJournalEntry(sid, cmd.EntryIndex, entry)
		effects.setState(sid.ServiceID, entry.Key, entry.Value)
		return nil
	case EntryClearState:
		effects.appendJournalEntry(sid, cmd.EntryIndex, entry)
		effects.clearState(sid.ServiceID, entry.Key)
		return nil
	case EntrySleep:
		effects.appendJournalEntry(sid, cmd.EntryIndex, entry)
		effects.registerTimer(entry.WakeUpTime, sid, cmd.EntryIndex)
		return nil
	case EntryAwakeable:
		// Early-return entries: the invoker already has everything it
		// needs locally, so there is nothing further to schedule.
		effects.appendAwakeableEntry(sid, cmd.EntryIndex, entry)
		return nil
	case EntryGetState, EntryPollInputStream, EntryOutputStream, EntryCustom:
		effects.appendJournalEntry(sid, cmd.EntryIndex, entry)
		return nil
	default:
		metrics.CommandsDroppedTotal.WithLabelValues("unknown_entry_type").Inc()
		return fmt.Errorf("unknown entry type %d", entry.Type)
	}
}

// applyInvokeEntry handles Invoke and BackgroundInvoke entries. Both send an
// Invocation message into the outbox, routed to whatever partition owns the
// callee, then append the entry; they differ only in whether a
// ResponseTarget is attached to the outgoing invocation so a completion
// eventually comes back to this entry.
func (sm *StateMachine) applyInvokeEntry(sid ServiceInvocationID, idx EntryIndex, entry RawEntry, effects *Effects, background bool) error {
	var target *ResponseTarget
	if !background {
		target = &ResponseTarget{ServiceInvocationID: sid, EntryIndex: idx}
	}

	newID := deriveInvocationID(sid, idx)
	sm.sendMessage(OutboxMessage{
		Kind: OutboxInvocation,
		Invocation: ServiceInvocation{
			ID: ServiceInvocationID{
				ServiceID:    ServiceID{ServiceName: entry.Request.ServiceName},
				InvocationID: newID,
			},
			MethodName:     entry.Request.MethodName,
			Argument:       entry.Request.Argument,
			ResponseTarget: target,
		},
	}, effects)

	effects.appendJournalEntry(sid, idx, entry)
	return nil
}

// applySuspended freezes a journal unless a completion raced the invoker's
// suspend decision: if the journal's actual revision has already advanced
// past the revision the invoker observed before deciding to suspend, a
// completion landed in between and the invocation must stay (or become)
// invoked instead of freezing on stale information.
func (sm *StateMachine) applySuspended(cmd Command, state StateReader, effects *Effects) error {
	sid := cmd.InvokerTarget
	status, err := sm.getStatus(state, sid.ServiceID)
	if err != nil {
		return err
	}
	if status.Kind != StatusInvoked || status.InvocationID != sid.InvocationID {
		metrics.CommandsDroppedTotal.WithLabelValues("stale_invoker_suspended").Inc()
		return nil
	}

	js, err := state.GetJournalStatus(sid.ServiceID)
	if err != nil {
		return &StateError{ServiceID: sid.ServiceID, Op: "GetJournalStatus", Cause: err}
	}

	if js.Revision > cmd.ExpectedRevision {
		effects.resumeService(sid)
		return nil
	}
	effects.suspendService(sid)
	return nil
}

// applyEnd finalizes a successful invocation: the journal is dropped, any
// caller awaiting a response is notified with the success result, and the
// inbox's next entry (if any) is promoted, or the ServiceID is freed.
func (sm *StateMachine) applyEnd(cmd Command, state StateReader, effects *Effects) error {
	return sm.completeInvocation(cmd.InvokerTarget, cmd.Result, state, effects)
}

// applyFailed finalizes a failed invocation identically to applyEnd, but
// the result forwarded to the response target (if any) carries
// cmd.Result, which the caller is expected to have set to a
// ResultFailure value.
func (sm *StateMachine) applyFailed(cmd Command, state StateReader, effects *Effects) error {
	return sm.completeInvocation(cmd.InvokerTarget, cmd.Result, state, effects)
}

// applyOutboxTruncation drops outbox entries the caller has confirmed were
// durably shipped downstream. It never touches StateReader since the
// truncation index is caller-supplied and self-contained.
func (sm *StateMachine) applyOutboxTruncation(cmd Command, effects *Effects) {
	effects.truncateOutbox(cmd.TruncateIndex)
}

// applyTimer fires a previously registered Sleep entry by delivering a
// successful completion carrying no value.
func (sm *StateMachine) applyTimer(cmd Command, state StateReader, effects *Effects) error {
	effects.deleteTimer(cmd.WakeUpTime, cmd.TimerTarget.ServiceID, cmd.TimerEntry)
	return sm.handleCompletion(cmd.TimerTarget, Completion{
		EntryIndex: cmd.TimerEntry,
		Result:     CompletionResult{Kind: ResultSuccess},
	}, state, effects)
}

// handleCompletion routes a Completion to the ServiceInvocationID it
// targets, with behavior depending on that invocation's current status:
//
//   - StatusInvoked: the invoker is still running and can observe the
//     completion directly without storage, so we hand it the completion
//     and also persist it for crash recovery.
//   - StatusSuspended: storing the completion may be what unblocks the
//     invocation, so resume happens before the store to avoid a window
//     where an observer could see the completion recorded but the
//     invocation still marked suspended.
//   - StatusFree: no journal exists to receive this completion (it
//     arrived after the invocation already completed, or targets an
//     invocation that was never tracked here); it is dropped.
func (sm *StateMachine) handleCompletion(target ServiceInvocationID, c Completion, state StateReader, effects *Effects) error {
	status, err := sm.getStatus(state, target.ServiceID)
	if err != nil {
		return err
	}

	switch status.Kind {
	case StatusInvoked:
		if status.InvocationID != target.InvocationID {
			metrics.CommandsDroppedTotal.WithLabelValues("stale_completion").Inc()
			sm.logger.Debug().Str("service", target.ServiceID.String()).Msg("completion dropped: stale invocation")
			return nil
		}
		effects.storeAndForwardCompletion(target, c)
		return nil
	case StatusSuspended:
		if status.InvocationID != target.InvocationID {
			metrics.CommandsDroppedTotal.WithLabelValues("stale_completion").Inc()
			sm.logger.Debug().Str("service", target.ServiceID.String()).Msg("completion dropped: stale invocation")
			return nil
		}
		effects.resumeService(target)
		effects.storeCompletion(target, c)
		return nil
	case StatusFree:
		metrics.CommandsDroppedTotal.WithLabelValues("completion_for_free_service").Inc()
		sm.logger.Debug().Str("service", target.ServiceID.String()).Msg("completion dropped: service is free")
		return nil
	default:
		panic(&InvariantViolation{Detail: fmt.Sprintf("unknown invocation status kind %d", status.Kind)})
	}
}

// completeInvocation drops the journal for a finished invocation, promotes
// the next inbox entry (or frees the ServiceID if the inbox is empty), and
// finally, if the completed invocation had a ResponseTarget (it was invoked
// via a blocking Invoke entry from another invocation), sends result to
// that target through the outbox.
func (sm *StateMachine) completeInvocation(sid ServiceInvocationID, result CompletionResult, state StateReader, effects *Effects) error {
	status, err := sm.getStatus(state, sid.ServiceID)
	if err != nil {
		return err
	}

	effects.dropJournal(sid.ServiceID)

	seq, inv, ok, err := state.PeekInbox(sid.ServiceID)
	if err != nil {
		return &StateError{ServiceID: sid.ServiceID, Op: "PeekInbox", Cause: err}
	}
	if ok {
		effects.popInbox(sid.ServiceID, seq)
		effects.invokeService(inv)
	} else {
		effects.freeService(sid.ServiceID)
	}

	if status.Kind != StatusFree && status.InvocationID == sid.InvocationID && status.ResponseTarget != nil {
		sm.sendMessage(OutboxMessage{
			Kind: OutboxResponse,
			Response: Response{
				ID:         status.ResponseTarget.ServiceInvocationID,
				EntryIndex: status.ResponseTarget.EntryIndex,
				Result:     result,
			},
		}, effects)
	}

	return nil
}

// sendMessage enqueues msg into the outbox under the next sequence
// number. It is the sole place that increments outboxSeqNumber so ordering
// is preserved even as multiple call sites produce outbox traffic.
func (sm *StateMachine) sendMessage(msg OutboxMessage, effects *Effects) {
	seq := sm.outboxSeqNumber
	sm.outboxSeqNumber++
	effects.enqueueIntoOutbox(seq, msg)
}

func (sm *StateMachine) getStatus(state StateReader, serviceID ServiceID) (InvocationStatus, error) {
	status, err := state.GetInvocationStatus(serviceID)
	if err != nil {
		return InvocationStatus{}, &StateError{ServiceID: serviceID, Op: "GetInvocationStatus", Cause: err}
	}
	return status, nil
}

// deriveInvocationID derives a deterministic InvocationID for an
// invocation spawned by a journal entry, so replay produces byte-identical
// IDs without consulting a random source. It folds the parent
// ServiceInvocationID and the spawning EntryIndex together; this is not
// cryptographic, only collision-resistant enough to keep sibling
// invocations from the same parent distinct.
func deriveInvocationID(parent ServiceInvocationID, idx EntryIndex) InvocationID {
	var id InvocationID
	h := fnv64a(parent.ServiceID.ServiceName, parent.ServiceID.Key, parent.InvocationID[:], idx)
	copy(id[:8], h[:])
	h2 := fnv64a(parent.InvocationID[:], parent.ServiceID.Key, []byte(parent.ServiceID.ServiceName), idx+1)
	copy(id[8:], h2[:])
	return id
}

func fnv64a(parts ...interface{}) [8]byte {
	const (
		offset uint64 = 14695981039346656037
		prime  uint64 = 1099511628211
	)
	hash := offset
	write := func(b []byte) {
		for _, c := range b {
			hash ^= uint64(c)
			hash *= prime
		}
	}
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			write([]byte(v))
		case []byte:
			write(v)
		case EntryIndex:
			write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
		}
	}
	var out [8]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(hash >> (8 * i))
	}
	return out
}
