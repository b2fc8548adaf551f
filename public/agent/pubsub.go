package agent

import "fmt"

// Publish writes msg, topic-prefixed, to every connection attached to the
// socket registered under alias — the PUB/PUSH/REQ send path: it broadcasts
// the encoded message, topic-prefixed, to every connected subscriber. topic
// may be empty for non-topic sockets (PUSH, REQ); a non-empty topic on a
// socket bound with a codec that forbids topic framing is rejected.
func (a *Agent) Publish(alias, topic string, msg Message) error {
	a.mu.Lock()
	sock, ok := a.sockets[alias]
	a.mu.Unlock()
	if !ok {
		return ErrUnknownAlias{Alias: alias}
	}
	if sock.auxConn != nil {
		return fmt.Errorf("agent: alias %q is a SYNC socket; use Send", alias)
	}
	if topic != "" && !sock.codec.AllowsTopic() {
		return fmt.Errorf("agent: alias %q uses codec %q, which forbids topic framing", alias, sock.codec.Name())
	}

	payload, err := sock.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("agent: encoding message: %w", err)
	}
	return a.send(sock, topic, payload)
}
