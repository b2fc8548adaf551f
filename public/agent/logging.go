package agent

import "time"

// Topic family an agent's warning channel publishes on once a logger alias
// has been configured via SetLoggerAlias, mirroring osbrain's "__log__"
// convention for routing one agent's log output to another's subscription.
const (
	LogTopicPrefix  = "__log__"
	LogTopicInfo    = LogTopicPrefix + ".info"
	LogTopicWarning = LogTopicPrefix + ".warning"
	LogTopicError   = LogTopicPrefix + ".error"
)

// LogRecord is the payload carried on the log topic family. SentUnixNano
// lets a subscriber report how stale a record was by the time it was
// consumed, useful when it falls behind a busy publisher.
type LogRecord struct {
	Agent        string `msgpack:"agent" json:"agent"`
	Message      string `msgpack:"message" json:"message"`
	SentUnixNano int64  `msgpack:"sent_unix_nano" json:"sent_unix_nano"`
}

// SetLoggerAlias points the agent's internal warning channel at a socket
// alias already bound/connected via Publish-capable Bind/Connect: every
// subsequent logWarning call, including the ones the runtime itself raises
// (a decode failure, a SYNC request timeout, a handler error), is also
// published as a LogRecord on that alias's LogTopicWarning, not just
// written to the local logger sink. Passing "" disables publishing again.
func (a *Agent) SetLoggerAlias(alias string) {
	a.mu.Lock()
	a.loggerAlias = alias
	a.mu.Unlock()
}

func (a *Agent) publishLog(topic, message string) {
	a.mu.Lock()
	alias := a.loggerAlias
	_, hasSocket := a.sockets[alias]
	a.mu.Unlock()
	if alias == "" || !hasSocket {
		return
	}
	_ = a.Publish(alias, topic, LogRecord{
		Agent:        a.name,
		Message:      message,
		SentUnixNano: time.Now().UnixNano(),
	})
}
