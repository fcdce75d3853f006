package main

import (
	"github.com/cuemby/partitiond/pkg/partition"
)

// harness is an in-memory StateReader that also absorbs the Effects
// produced by each Apply call, so a fixture file can express a sequence
// of commands that build on each other's outcome without a live storage
// layer. It exists purely for apply-fixture; it is not a substitute for
// the real per-partition storage-backed reader.
type harness struct {
	status  map[string]partition.InvocationStatus
	inbox   map[string][]inboxEntry
	journal map[string]partition.JournalStatus
}

type inboxEntry struct {
	seq uint64
	inv partition.ServiceInvocation
}

func newHarness() *harness {
	return &harness{
		status:  make(map[string]partition.InvocationStatus),
		inbox:   make(map[string][]inboxEntry),
		journal: make(map[string]partition.JournalStatus),
	}
}

func serviceKey(sid partition.ServiceID) string {
	return sid.ServiceName + "\x00" + string(sid.Key)
}

func (h *harness) GetInvocationStatus(sid partition.ServiceID) (partition.InvocationStatus, error) {
	return h.status[serviceKey(sid)], nil
}

func (h *harness) PeekInbox(sid partition.ServiceID) (uint64, partition.ServiceInvocation, bool, error) {
	q := h.inbox[serviceKey(sid)]
	if len(q) == 0 {
		return 0, partition.ServiceInvocation{}, false, nil
	}
	return q[0].seq, q[0].inv, true, nil
}

func (h *harness) GetJournalStatus(sid partition.ServiceID) (partition.JournalStatus, error) {
	return h.journal[serviceKey(sid)], nil
}

// absorb folds a batch of effects back into the harness's view of the
// world, the way a real applier would after durably persisting them.
func (h *harness) absorb(effects []partition.Effect) {
	for _, ef := range effects {
		switch ef.Kind {
		case partition.EffectInvokeService:
			target := ef.ServiceInv.ID.ServiceID
			h.status[serviceKey(target)] = partition.InvocationStatus{
				Kind:           partition.StatusInvoked,
				InvocationID:   ef.ServiceInv.ID.InvocationID,
				ResponseTarget: ef.ServiceInv.ResponseTarget,
			}
		case partition.EffectEnqueueIntoInbox:
			target := ef.ServiceInv.ID.ServiceID
			key := serviceKey(target)
			h.inbox[key] = append(h.inbox[key], inboxEntry{seq: ef.InboxSeq, inv: ef.ServiceInv})
		case partition.EffectPopInbox:
			key := serviceKey(ef.ServiceID)
			if q := h.inbox[key]; len(q) > 0 {
				h.inbox[key] = q[1:]
			}
		case partition.EffectAppendJournalEntry, partition.EffectAppendAwakeableEntry:
			key := serviceKey(ef.ServiceInvID.ServiceID)
			js := h.journal[key]
			js.Length++
			js.Revision++
			h.journal[key] = js
		case partition.EffectResumeService:
			key := serviceKey(ef.ServiceInvID.ServiceID)
			status := h.status[key]
			status.Kind = partition.StatusInvoked
			h.status[key] = status
		case partition.EffectSuspendService:
			key := serviceKey(ef.ServiceInvID.ServiceID)
			status := h.status[key]
			status.Kind = partition.StatusSuspended
			h.status[key] = status
		case partition.EffectDropJournal:
			h.journal[serviceKey(ef.ServiceID)] = partition.JournalStatus{}
		case partition.EffectFreeService:
			h.status[serviceKey(ef.ServiceID)] = partition.InvocationStatus{Kind: partition.StatusFree}
		}
	}
}
