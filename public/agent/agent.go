package agent

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/tenzoki/agentwire/internal/transport"
)

// defaultIdleSlice bounds how long the event loop waits with nothing
// scheduled before it re-checks timers and SYNC deadlines.
const defaultIdleSlice = 50 * time.Millisecond

// event is the sum type pushed onto an agent's inbox by its socket reader
// goroutines; dispatch(), run only from the loop goroutine, is the single
// point where agent state is mutated: handlers never run concurrently with
// each other or with the loop.
type event interface{ isEvent() }

type dataEvent struct {
	sock    *socket
	conn    net.Conn
	topic   string
	payload []byte
}

func (dataEvent) isEvent() {}

type syncRequestEvent struct {
	sock      *socket
	conn      net.Conn
	requestID string
	payload   []byte
}

func (syncRequestEvent) isEvent() {}

type syncReplyEvent struct {
	sock      *socket
	requestID string
	payload   []byte
}

func (syncReplyEvent) isEvent() {}

type controlEvent struct {
	conn    net.Conn
	request controlRequest
}

func (controlEvent) isEvent() {}

// Agent is one named process in the runtime: a control socket, a registry
// of data sockets and timers, and an attribute bag, all driven by a single
// event loop goroutine.
type Agent struct {
	name string

	mu            sync.Mutex
	sockets       map[string]*socket
	timers        map[string]*timerEntry
	pending       map[string]*pendingRequest
	attrs         map[string]interface{}
	methods       map[string]MethodFunc
	errorHandlers map[string]ErrorFunc

	controlAddr     transport.Address
	controlListener interface{ Close() error }

	inbox  chan event
	cancel context.CancelFunc
	done   chan struct{}

	aliasSeq atomic.Int64

	logger logr.Logger

	// loggerAlias, when set via SetLoggerAlias, is the socket alias the
	// agent's warning channel also publishes through, on top of writing to
	// logger. See publishLog.
	loggerAlias string
}

// New creates an agent named name. The control socket is bound separately
// via BindControl once host/port are known.
func New(name string, logger logr.Logger) *Agent {
	return &Agent{
		name:          name,
		sockets:       make(map[string]*socket),
		timers:        make(map[string]*timerEntry),
		pending:       make(map[string]*pendingRequest),
		attrs:         make(map[string]interface{}),
		methods:       make(map[string]MethodFunc),
		errorHandlers: make(map[string]ErrorFunc),
		inbox:         make(chan event, 64),
		done:          make(chan struct{}),
		logger:        logger.WithValues("agent", name),
	}
}

// Name returns the agent's registered name.
func (a *Agent) Name() string { return a.name }

// ControlAddress returns the address of the agent's bound control socket.
// Valid only after BindControl has succeeded.
func (a *Agent) ControlAddress() transport.Address { return a.controlAddr }

func (a *Agent) nextAliasSeq() int64 { return a.aliasSeq.Add(1) }

// Get returns an attribute by name.
func (a *Agent) Get(name string) (interface{}, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.attrs[name]
	return v, ok
}

// Set assigns an attribute.
func (a *Agent) Set(name string, value interface{}) {
	a.mu.Lock()
	a.attrs[name] = value
	a.mu.Unlock()
}

// HandleFunc registers a named method the control channel's "call" verb
// and data/topic handlers can resolve by name: handlers are named, not
// transported as closures.
func (a *Agent) HandleFunc(name string, fn MethodFunc) {
	a.mu.Lock()
	a.methods[name] = fn
	a.mu.Unlock()
}

// HandleError registers a named error handler resolvable from SendOptions.OnError.
func (a *Agent) HandleError(name string, fn ErrorFunc) {
	a.mu.Lock()
	a.errorHandlers[name] = fn
	a.mu.Unlock()
}

func (a *Agent) resolveMethod(spec HandlerSpec) (MethodFunc, bool) {
	if spec.Name == "" {
		return nil, false
	}
	if spec.Kind == HandlerKindBuiltin {
		fn, ok := builtins[spec.Name]
		return fn, ok
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fn, ok := a.methods[spec.Name]
	return fn, ok
}

func (a *Agent) resolveErrorHandler(spec HandlerSpec) (ErrorFunc, bool) {
	if spec.Name == "" {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fn, ok := a.errorHandlers[spec.Name]
	return fn, ok
}

// Run starts the agent's event loop and blocks until ctx is cancelled or
// Stop is called.
func (a *Agent) Run(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	defer close(a.done)
	a.runLoop(loopCtx)
}

// Stop cancels the event loop and closes every registered socket. Safe to
// call more than once.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	<-a.done

	a.mu.Lock()
	socks := make([]*socket, 0, len(a.sockets))
	for _, s := range a.sockets {
		socks = append(socks, s)
	}
	a.sockets = make(map[string]*socket)
	if a.controlListener != nil {
		a.controlListener.Close()
	}
	a.mu.Unlock()

	for _, s := range socks {
		closeSocket(s)
	}
}

func newRequestID() string { return uuid.NewString() }

func (a *Agent) logWarning(msg string, kv ...interface{}) {
	a.logger.Error(nil, msg, kv...) //nolint:logrlint // warnings logged at Error level with nil error, per go-logr convention.
	a.publishLog(LogTopicWarning, msg)
}
