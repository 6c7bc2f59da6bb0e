// Package callback translates internal progress events into MCP progress
// notifications, keyed by the client's progressToken, suppressing tokenless
// updates and deduplicating repeated completions.
package callback

import (
	"fmt"
	"sync"
)

// ClientType gates whether progress notifications are emitted at all —
// some clients mishandle them even with a valid token.
type ClientType string

const (
	ClientTypeDefault ClientType = "default"
	ClientTypeNoProgress ClientType = "no-progress"
)

// SupportsProgress reports whether this client flavor should receive
// progress notifications.
func (c ClientType) SupportsProgress() bool {
	return c != ClientTypeNoProgress
}

// Update is one progress event generated by a running operation.
type Update struct {
	OperationID string
	Kind        UpdateKind
	Message     string
	Percentage  *float64 // nil when unknown; Progress/Final use 0-100
}

// UpdateKind distinguishes the stage an Update represents.
type UpdateKind int

const (
	UpdateStarted UpdateKind = iota
	UpdateProgress
	UpdateOutput
	UpdateCompleted
	UpdateFailed
	UpdateCancelled
)

// Notification is the translated, transport-agnostic progress notification
// a Sender emits. Router hands these to whatever Sender the session wires
// in (the real MCP server session, or a test double).
type Notification struct {
	ProgressToken any
	Progress      float64
	Total         *float64
	Message       string
}

// Sender delivers one outbound progress notification. The concrete
// implementation (internal/mcpservice) wraps the go-sdk server session's
// notifications/progress call.
type Sender interface {
	SendProgress(n Notification) error
}

// dedupKey identifies an (operation, progress value, kind) triple so
// identical progress values are not re-emitted.
type dedupKey struct {
	opID     string
	progress float64
	kind     UpdateKind
}

// Router routes Updates to Notifications for one session, given the
// session's operation id -> progressToken table and client-type gate.
type Router struct {
	mu         sync.Mutex
	sender     Sender
	clientType ClientType
	tokens     map[string]any // operation id -> client progressToken
	seen       map[dedupKey]bool
	completed  map[string]bool // operation ids whose terminal notification already fired
}

// NewRouter creates a Router bound to sender, gated by clientType.
func NewRouter(sender Sender, clientType ClientType) *Router {
	return &Router{
		sender:     sender,
		clientType: clientType,
		tokens:     make(map[string]any),
		seen:       make(map[dedupKey]bool),
		completed:  make(map[string]bool),
	}
}

// SetSender rebinds the Router's delivery target. Used when the transport
// session becomes available only after the Router itself was constructed
// (the streamable-HTTP and stdio transports hand over their session object
// on first request, not at server-build time).
func (r *Router) SetSender(sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = sender
}

// BindToken associates operationID with the progressToken the client
// attached to the originating request. Call this when an operation is
// created from a request that carried one; operations from tokenless
// requests are never bound, so their updates are suppressed below.
func (r *Router) BindToken(operationID string, progressToken any) {
	if progressToken == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[operationID] = progressToken
}

// Route translates u into a Notification and sends it, unless:
//   - the client type doesn't support progress notifications;
//   - no progressToken was ever bound for u.OperationID — a progress
//     notification's token must equal the token the client sent on the
//     originating request, or it is suppressed entirely;
//   - a terminal notification for this operation already fired;
//   - an identical (operation, progress, kind) update was already sent.
func (r *Router) Route(u Update) error {
	if !r.clientType.SupportsProgress() {
		return nil
	}

	r.mu.Lock()
	token, bound := r.tokens[u.OperationID]
	if !bound {
		r.mu.Unlock()
		return nil
	}
	if r.completed[u.OperationID] {
		r.mu.Unlock()
		return nil
	}

	progress, total, message := translate(u)
	key := dedupKey{opID: u.OperationID, progress: progress, kind: u.Kind}
	if r.seen[key] {
		r.mu.Unlock()
		return nil
	}
	r.seen[key] = true
	terminal := u.Kind == UpdateCompleted || u.Kind == UpdateFailed || u.Kind == UpdateCancelled
	if terminal {
		r.completed[u.OperationID] = true
	}
	r.mu.Unlock()

	return r.sender.SendProgress(Notification{
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}

func translate(u Update) (progress float64, total *float64, message string) {
	hundred := 100.0
	switch u.Kind {
	case UpdateStarted:
		return 0, nil, u.Message
	case UpdateProgress:
		p := 50.0
		if u.Percentage != nil {
			p = *u.Percentage
		}
		return p, &hundred, u.Message
	case UpdateOutput:
		return 0, nil, u.Message
	case UpdateCompleted, UpdateFailed, UpdateCancelled:
		return 100, &hundred, u.Message
	default:
		return 0, nil, fmt.Sprintf("unknown update kind %d", u.Kind)
	}
}

// Forget drops an operation's token binding and dedup state, called once
// its terminal notification has been delivered and it has left the active
// set, to bound the router's memory to in-flight operations only.
func (r *Router) Forget(operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, operationID)
	delete(r.completed, operationID)
	for k := range r.seen {
		if k.opID == operationID {
			delete(r.seen, k)
		}
	}
}
