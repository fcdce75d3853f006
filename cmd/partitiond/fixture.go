package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/partitiond/pkg/partition"
)

// fixtureFile is the JSON shape of an apply-fixture input: an initial
// sequence-counter pair plus an ordered list of commands to feed through
// the state machine, one Apply call per entry.
type fixtureFile struct {
	InitialInbox  uint64           `json:"initial_inbox"`
	InitialOutbox uint64           `json:"initial_outbox"`
	Commands      []fixtureCommand `json:"commands"`
}

type fixtureServiceInvocationID struct {
	Service      string `json:"service"`
	Key          string `json:"key"`
	InvocationID byte   `json:"invocation_id"`
}

func (j fixtureServiceInvocationID) toServiceInvocationID() partition.ServiceInvocationID {
	var id partition.InvocationID
	id[0] = j.InvocationID
	return partition.ServiceInvocationID{
		ServiceID:    partition.ServiceID{ServiceName: j.Service, Key: []byte(j.Key)},
		InvocationID: id,
	}
}

type fixtureResponseTarget struct {
	Service      string `json:"service"`
	Key          string `json:"key"`
	InvocationID byte   `json:"invocation_id"`
	EntryIndex   uint32 `json:"entry_index"`
}

func (j *fixtureResponseTarget) toResponseTarget() *partition.ResponseTarget {
	if j == nil {
		return nil
	}
	var id partition.InvocationID
	id[0] = j.InvocationID
	return &partition.ResponseTarget{
		ServiceInvocationID: partition.ServiceInvocationID{
			ServiceID:    partition.ServiceID{ServiceName: j.Service, Key: []byte(j.Key)},
			InvocationID: id,
		},
		EntryIndex: partition.EntryIndex(j.EntryIndex),
	}
}

type fixtureResult struct {
	Kind    string `json:"kind"` // "success" or "failure"
	Value   string `json:"value,omitempty"`
	Code    uint16 `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (j fixtureResult) toCompletionResult() partition.CompletionResult {
	if j.Kind == "failure" {
		return partition.CompletionResult{Kind: partition.ResultFailure, Code: j.Code, Message: j.Message}
	}
	return partition.CompletionResult{Kind: partition.ResultSuccess, Value: []byte(j.Value)}
}

type fixtureInvocation struct {
	Target         fixtureServiceInvocationID `json:"target"`
	Method         string                     `json:"method"`
	Argument       string                     `json:"argument"`
	ResponseTarget *fixtureResponseTarget     `json:"response_target,omitempty"`
}

func (j fixtureInvocation) toServiceInvocation() partition.ServiceInvocation {
	return partition.ServiceInvocation{
		ID:             j.Target.toServiceInvocationID(),
		MethodName:     j.Method,
		Argument:       []byte(j.Argument),
		ResponseTarget: j.ResponseTarget.toResponseTarget(),
	}
}

type fixtureResponse struct {
	Target     fixtureServiceInvocationID `json:"target"`
	EntryIndex uint32                     `json:"entry_index"`
	Result     fixtureResult              `json:"result"`
}

func (j fixtureResponse) toResponse() partition.Response {
	return partition.Response{
		ID:         j.Target.toServiceInvocationID(),
		EntryIndex: partition.EntryIndex(j.EntryIndex),
		Result:     j.Result.toCompletionResult(),
	}
}

var entryTypeByName = map[string]partition.EntryType{
	"invoke":             partition.EntryInvoke,
	"background_invoke":  partition.EntryBackgroundInvoke,
	"complete_awakeable": partition.EntryCompleteAwakeable,
	"set_state":          partition.EntrySetState,
	"clear_state":        partition.EntryClearState,
	"sleep":              partition.EntrySleep,
	"get_state":          partition.EntryGetState,
	"poll_input_stream":  partition.EntryPollInputStream,
	"output_stream":      partition.EntryOutputStream,
	"awakeable":          partition.EntryAwakeable,
	"custom":             partition.EntryCustom,
}

type fixtureEntry struct {
	Type            string                     `json:"type"`
	Service         string                     `json:"service,omitempty"`
	Method          string                     `json:"method,omitempty"`
	Argument        string                     `json:"argument,omitempty"`
	AwakeableTarget fixtureServiceInvocationID `json:"awakeable_target,omitempty"`
	AwakeableIndex  uint32                     `json:"awakeable_index,omitempty"`
	AwakeableResult *fixtureResult             `json:"awakeable_result,omitempty"`
	Key             string                     `json:"key,omitempty"`
	Value           string                     `json:"value,omitempty"`
	WakeUpTime      uint64                     `json:"wake_up_time,omitempty"`
}

func (j fixtureEntry) toRawEntry() (partition.RawEntry, error) {
	typ, ok := entryTypeByName[j.Type]
	if !ok {
		return partition.RawEntry{}, fmt.Errorf("unknown entry type %q", j.Type)
	}
	entry := partition.RawEntry{
		Type:            typ,
		Request:         partition.InvokeRequest{ServiceName: j.Service, MethodName: j.Method, Argument: []byte(j.Argument)},
		AwakeableTarget: j.AwakeableTarget.toServiceInvocationID(),
		AwakeableIndex:  partition.EntryIndex(j.AwakeableIndex),
		Key:             []byte(j.Key),
		Value:           []byte(j.Value),
		WakeUpTime:      j.WakeUpTime,
	}
	if j.AwakeableResult != nil {
		entry.AwakeableResult = j.AwakeableResult.toCompletionResult()
	}
	return entry, nil
}

var commandKindByName = map[string]partition.CommandKind{
	"invocation":        partition.CommandInvocation,
	"response":          partition.CommandResponse,
	"journal_entry":     partition.CommandInvokerJournalEntry,
	"suspended":         partition.CommandInvokerSuspended,
	"end":               partition.CommandInvokerEnd,
	"failed":            partition.CommandInvokerFailed,
	"outbox_truncation": partition.CommandOutboxTruncation,
	"timer":             partition.CommandTimer,
}

type fixtureCommand struct {
	Kind             string                     `json:"kind"`
	PartitionID      uint32                     `json:"partition_id,omitempty"`
	LeaderEpoch      uint64                     `json:"leader_epoch,omitempty"`
	Invocation       *fixtureInvocation         `json:"invocation,omitempty"`
	Response         *fixtureResponse           `json:"response,omitempty"`
	Target           fixtureServiceInvocationID `json:"target,omitempty"`
	Entry            *fixtureEntry              `json:"entry,omitempty"`
	EntryIndex       uint32                     `json:"entry_index,omitempty"`
	Result           *fixtureResult             `json:"result,omitempty"`
	TruncateIndex    uint64                     `json:"truncate_index,omitempty"`
	WakeUpTime       uint64                     `json:"wake_up_time,omitempty"`
	ExpectedRevision uint64                     `json:"expected_revision,omitempty"`
}

func (j fixtureCommand) toCommand() (partition.Command, error) {
	kind, ok := commandKindByName[j.Kind]
	if !ok {
		return partition.Command{}, fmt.Errorf("unknown command kind %q", j.Kind)
	}

	cmd := partition.Command{
		Kind:             kind,
		Epoch:            partition.PartitionLeaderEpoch{PartitionID: j.PartitionID, LeaderEpoch: j.LeaderEpoch},
		InvokerTarget:    j.Target.toServiceInvocationID(),
		EntryIndex:       partition.EntryIndex(j.EntryIndex),
		TruncateIndex:    j.TruncateIndex,
		TimerTarget:      j.Target.toServiceInvocationID(),
		TimerEntry:       partition.EntryIndex(j.EntryIndex),
		WakeUpTime:       j.WakeUpTime,
		ExpectedRevision: partition.JournalRevision(j.ExpectedRevision),
	}

	if j.Invocation != nil {
		cmd.Invocation = j.Invocation.toServiceInvocation()
	}
	if j.Response != nil {
		cmd.Response = j.Response.toResponse()
	}
	if j.Entry != nil {
		entry, err := j.Entry.toRawEntry()
		if err != nil {
			return partition.Command{}, err
		}
		cmd.Entry = entry
	}
	if j.Result != nil {
		cmd.Result = j.Result.toCompletionResult()
	}
	return cmd, nil
}

var applyFixtureCmd = &cobra.Command{
	Use:   "apply-fixture FILE",
	Short: "Replay a recorded command sequence through the state machine",
	Long: `apply-fixture reads a JSON fixture describing an initial sequence-
counter pair and an ordered list of commands, feeds each one through a
fresh StateMachine in order, and prints the resulting effect log. It
never touches a live database; it is a determinism-contract debugging
aid, not a production replay path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read fixture: %w", err)
		}

		var fixture fixtureFile
		if err := json.Unmarshal(data, &fixture); err != nil {
			return fmt.Errorf("failed to parse fixture: %w", err)
		}

		sm := partition.New(fixture.InitialInbox, fixture.InitialOutbox)
		reader := newHarness()
		effects := partition.NewEffects(8)

		for i, fc := range fixture.Commands {
			c, err := fc.toCommand()
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}

			effects.Reset()
			if err := sm.Apply(c, reader, effects); err != nil {
				return fmt.Errorf("command %d (%s): %w", i, fc.Kind, err)
			}

			fmt.Printf("[%d] %s -> %d effect(s)\n", i, fc.Kind, effects.Len())
			for _, ef := range effects.All() {
				fmt.Printf("      %s\n", ef.Kind)
			}
			reader.absorb(effects.All())
		}

		fmt.Printf("\nfinal inbox_seq_number=%d outbox_seq_number=%d\n", sm.InboxSeqNumber(), sm.OutboxSeqNumber())
		return nil
	},
}
