package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenzoki/agentwire/internal/wire"
)

var syncTracer = otel.Tracer("github.com/tenzoki/agentwire/public/agent")

// pendingRequest tracks one outstanding SYNC_SUB request awaiting its
// matching reply on the auxiliary unicast leg.
type pendingRequest struct {
	requestID string
	sock      *socket
	handler   HandlerSpec
	onError   ErrorFunc
	deadline  time.Time // zero means no deadline
	span      trace.Span
}

// Send issues a request on a SYNC_SUB socket's auxiliary leg without
// blocking; the matching reply, when it arrives, is demultiplexed by
// request id and delivered to opts.Handler from the loop goroutine.
func (a *Agent) Send(alias string, msg Message, opts SendOptions) error {
	a.mu.Lock()
	sock, ok := a.sockets[alias]
	a.mu.Unlock()
	if !ok {
		return ErrUnknownAlias{Alias: alias}
	}
	if sock.auxConn == nil {
		return fmt.Errorf("agent: alias %q is not a SYNC_SUB socket", alias)
	}

	payload, err := sock.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("agent: encoding sync request: %w", err)
	}

	requestID := newRequestID()
	_, span := syncTracer.Start(context.Background(), "agent.sync.send", trace.WithAttributes(
		attribute.String("agentwire.alias", alias),
		attribute.String("agentwire.request_id", requestID),
	))
	pr := &pendingRequest{requestID: requestID, sock: sock, handler: opts.Handler, onError: nil, span: span}
	if opts.HasWait {
		pr.deadline = time.Now().Add(opts.Wait)
	}
	if opts.OnError.Name != "" {
		if fn, ok := a.resolveErrorHandler(opts.OnError); ok {
			pr.onError = fn
		}
	}

	a.mu.Lock()
	a.pending[requestID] = pr
	a.mu.Unlock()

	f := wire.Frame{Topic: []byte(requestID), Payload: payload}
	if err := wire.WriteFrame(sock.auxConn, f, sock.compress); err != nil {
		a.mu.Lock()
		delete(a.pending, requestID)
		a.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return fmt.Errorf("agent: sending sync request: %w", err)
	}
	return nil
}

// dispatchSyncRequest is the SYNC_PUB side: a subscriber's request arrived
// on the auxiliary leg and must be answered, tagged with the same request
// id, on the same connection.
func (a *Agent) dispatchSyncRequest(e syncRequestEvent) {
	msg, err := e.sock.decode(e.payload)
	if err != nil {
		a.logWarning("decoding sync request", "alias", e.sock.alias, "error", err)
		return
	}
	reply := a.invokeHandler(e.sock.handler, msg, "")

	payload, err := e.sock.codec.Encode(reply)
	if err != nil {
		a.logWarning("encoding sync reply", "alias", e.sock.alias, "error", err)
		return
	}
	f := wire.Frame{Topic: []byte(e.requestID), Payload: payload}
	if err := wire.WriteFrame(e.conn, f, e.sock.compress); err != nil {
		a.logWarning("writing sync reply", "alias", e.sock.alias, "error", err)
	}
}

// dispatchSyncReply is the SYNC_SUB side: match the reply to its pending
// request by id. A request id absent from the pending table — because its
// deadline already fired and checkSyncDeadlines removed it — is dropped
// without logging, the reply having lost the race against its own
// timeout.
func (a *Agent) dispatchSyncReply(e syncReplyEvent) {
	a.mu.Lock()
	pr, ok := a.pending[e.requestID]
	if ok {
		delete(a.pending, e.requestID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	defer pr.span.End()

	msg, err := e.sock.decode(e.payload)
	if err != nil {
		pr.span.RecordError(err)
		pr.span.SetStatus(codes.Error, err.Error())
		a.logWarning("decoding sync reply", "alias", e.sock.alias, "error", err)
		return
	}
	if pr.handler.Name != "" {
		a.invokeHandler(pr.handler, msg, "")
	}
}

// checkSyncDeadlines runs once per loop iteration idle tick, firing
// on_error for any pending request whose deadline has elapsed; the log
// line carries "not receive req", echoing osbrain's own warning text.
func (a *Agent) checkSyncDeadlines() {
	now := time.Now()

	a.mu.Lock()
	expired := make([]*pendingRequest, 0)
	for id, pr := range a.pending {
		if !pr.deadline.IsZero() && !pr.deadline.After(now) {
			expired = append(expired, pr)
			delete(a.pending, id)
		}
	}
	a.mu.Unlock()

	for _, pr := range expired {
		pr.span.SetStatus(codes.Error, "deadline exceeded")
		pr.span.End()
		a.logWarning(fmt.Sprintf("did not receive req reply for %s before deadline", pr.requestID), "alias", pr.sock.alias)
		if pr.onError != nil {
			pr.onError(a)
		}
	}
}
