package session

// This file implements the Signaling State Machine (§4.J) as a pure
// function over a transition table — no side effects, no dependency on the
// Repository, Registry, or Adapter. Guard outcomes that require external
// state (validation, code verification, room membership) are resolved by
// the caller (Engine, in engine.go) and encoded directly into the Event
// passed to ApplyEvent, exactly as the guard on a received BFD Control
// packet's State field is encoded into one of several Recv* events before
// reaching the transition table.
//
// State diagram (§4.J):
//
//	NONE --upload-init--> WAITING --join-room(ok)--> ACTIVE
//	WAITING --join-room(bad code)--> WAITING (self-loop, error emitted)
//	WAITING/ACTIVE --cancel-transfer--> TERMINATED
//	WAITING/ACTIVE --transfer-complete--> COMPLETED
//	COMPLETED --join-room--> COMPLETED (self-loop, already-downloaded error)

// State is a signaling session's lifecycle state (§4.J).
type State uint8

const (
	// StateNone is the state of a session id before upload-init has ever
	// been processed for it — there is no row and no FSM instance.
	StateNone State = iota
	StateWaiting
	StateActive
	StateCompleted
	StateTerminated
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateWaiting:
		return "WAITING"
	case StateActive:
		return "ACTIVE"
	case StateCompleted:
		return "COMPLETED"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Event represents a Signaling FSM event (§4.J, §6). Guard outcomes that
// branch the effect (valid code vs. invalid code vs. already-downloaded)
// are distinct event values, resolved by the Engine before calling ApplyEvent.
type Event uint8

const (
	EventUploadInit Event = iota
	EventJoinRoomOK
	EventJoinRoomInvalidCode
	EventJoinRoomAlreadyDownloaded
	EventSignal
	EventCancelTransfer
	EventTransferComplete
)

// String returns the human-readable name of the event.
func (e Event) String() string {
	switch e {
	case EventUploadInit:
		return "upload-init"
	case EventJoinRoomOK:
		return "join-room(ok)"
	case EventJoinRoomInvalidCode:
		return "join-room(invalid-code)"
	case EventJoinRoomAlreadyDownloaded:
		return "join-room(already-downloaded)"
	case EventSignal:
		return "signal"
	case EventCancelTransfer:
		return "cancel-transfer"
	case EventTransferComplete:
		return "transfer-complete"
	default:
		return "unknown"
	}
}

// Action represents a side effect the Engine must execute after a
// transition. The FSM itself never touches the Repository, Registry, or
// Adapter — it only says what should happen.
type Action uint8

const (
	ActionCreateRowAndRegister Action = iota + 1
	ActionEmitUploadCreated
	ActionSetRepoActive
	ActionJoinRoom
	ActionEmitFileMeta
	ActionEmitReceiverJoined
	ActionEmitInvalidCode
	ActionEmitAlreadyDownloaded
	ActionForwardSignal
	ActionEmitTransferCancelled
	ActionDeleteRowAndCleanup
)

// String returns the human-readable name of the action.
func (a Action) String() string {
	switch a {
	case ActionCreateRowAndRegister:
		return "CreateRowAndRegister"
	case ActionEmitUploadCreated:
		return "EmitUploadCreated"
	case ActionSetRepoActive:
		return "SetRepoActive"
	case ActionJoinRoom:
		return "JoinRoom"
	case ActionEmitFileMeta:
		return "EmitFileMeta"
	case ActionEmitReceiverJoined:
		return "EmitReceiverJoined"
	case ActionEmitInvalidCode:
		return "EmitInvalidCode"
	case ActionEmitAlreadyDownloaded:
		return "EmitAlreadyDownloaded"
	case ActionForwardSignal:
		return "ForwardSignal"
	case ActionEmitTransferCancelled:
		return "EmitTransferCancelled"
	case ActionDeleteRowAndCleanup:
		return "DeleteRowAndCleanup"
	default:
		return "Unknown"
	}
}

// stateEvent is the FSM transition table key.
type stateEvent struct {
	state State
	event Event
}

// transition describes the target state and side effects of one table entry.
type transition struct {
	newState State
	actions  []Action
}

// FSMResult holds the outcome of applying an event (§4.J).
type FSMResult struct {
	OldState State
	NewState State
	Actions  []Action
	Changed  bool
}

//nolint:gochecknoglobals // transition table is intentionally package-level, mirroring the BFD FSM this is patterned on.
var fsmTable = map[stateEvent]transition{
	// NONE + upload-init -> WAITING. §4.J: "Repository.create -> Registry.register
	// -> emit upload-created{id, code} to sender".
	{StateNone, EventUploadInit}: {
		newState: StateWaiting,
		actions:  []Action{ActionCreateRowAndRegister, ActionEmitUploadCreated},
	},

	// WAITING + join-room(ok) -> ACTIVE. §4.J: "set Repository status=ACTIVE;
	// join endpoint to room; emit file-meta to joiner; emit receiver-joined to sender".
	{StateWaiting, EventJoinRoomOK}: {
		newState: StateActive,
		actions:  []Action{ActionSetRepoActive, ActionJoinRoom, ActionEmitFileMeta, ActionEmitReceiverJoined},
	},

	// WAITING + join-room(bad code) -> WAITING (self-loop). §4.J: "join-room
	// with a bad code returns invalid-code=true so the client UI can re-prompt".
	{StateWaiting, EventJoinRoomInvalidCode}: {
		newState: StateWaiting,
		actions:  []Action{ActionEmitInvalidCode},
	},

	// COMPLETED + join-room -> COMPLETED (self-loop). §4.J: "join-room on a
	// session whose repository row is COMPLETED returns already-downloaded".
	// Reachable only in the status=COMPLETED retention variant; under the
	// chosen delete-on-complete policy the row (and FSM instance) is already
	// gone by the time this would apply, so this entry exists for
	// completeness per the Open Question in §9.
	{StateCompleted, EventJoinRoomOK}: {
		newState: StateCompleted,
		actions:  []Action{ActionEmitAlreadyDownloaded},
	},
	{StateCompleted, EventJoinRoomInvalidCode}: {
		newState: StateCompleted,
		actions:  []Action{ActionEmitAlreadyDownloaded},
	},

	// WAITING/ACTIVE + signal -> unchanged (self-loop). §4.L performs the
	// room-membership checks; the FSM only records that a signal passed
	// through without altering the session's lifecycle state.
	{StateWaiting, EventSignal}: {newState: StateWaiting, actions: []Action{ActionForwardSignal}},
	{StateActive, EventSignal}:  {newState: StateActive, actions: []Action{ActionForwardSignal}},

	// WAITING/ACTIVE + cancel-transfer -> TERMINATED. §4.J: "emit
	// transfer-cancelled{reason} to peer".
	{StateWaiting, EventCancelTransfer}: {
		newState: StateTerminated,
		actions:  []Action{ActionEmitTransferCancelled},
	},
	{StateActive, EventCancelTransfer}: {
		newState: StateTerminated,
		actions:  []Action{ActionEmitTransferCancelled},
	},

	// WAITING/ACTIVE + transfer-complete -> COMPLETED. §4.J + resolved Open
	// Question in §9: delete-on-complete, so the caller's ActionDeleteRowAndCleanup
	// removes the row entirely rather than persisting a COMPLETED row.
	{StateWaiting, EventTransferComplete}: {
		newState: StateCompleted,
		actions:  []Action{ActionDeleteRowAndCleanup},
	},
	{StateActive, EventTransferComplete}: {
		newState: StateCompleted,
		actions:  []Action{ActionDeleteRowAndCleanup},
	},
}

// ApplyEvent applies event to currentState and returns the result. This is
// a pure function: no I/O, no locking, no dependency on any other
// component. If the (state, event) pair has no table entry, the event is
// silently ignored — per §4.J, events outside the documented transitions
// (e.g., a signal against a session with no live room) are a concern for
// the Engine and Router, not the FSM.
func ApplyEvent(currentState State, event Event) FSMResult {
	tr, ok := fsmTable[stateEvent{state: currentState, event: event}]
	if !ok {
		return FSMResult{OldState: currentState, NewState: currentState}
	}

	return FSMResult{
		OldState: currentState,
		NewState: tr.newState,
		Actions:  tr.actions,
		Changed:  currentState != tr.newState,
	}
}

// StatusToState maps a repository Status to the corresponding FSM State,
// for reconstructing a session's FSM state from a freshly loaded row.
func StatusToState(status Status) State {
	switch status {
	case StatusWaiting:
		return StateWaiting
	case StatusActive:
		return StateActive
	case StatusCompleted:
		return StateCompleted
	default:
		return StateNone
	}
}
