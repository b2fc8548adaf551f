package operator

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
)

// RunLogger starts a dedicated logging agent named name, subscribed to
// every agent's "__log__" topic family and re-emitting records through
// logger.
func RunLogger(name string, nsAddr transport.Address, host string, logger logr.Logger) (*agent.Agent, transport.Address, *Handle, error) {
	a, handle, err := RunAgent(name, nsAddr, host, logger)
	if err != nil {
		return nil, transport.Address{}, nil, err
	}

	a.HandleFunc("log_info", loggerHandler(logger.V(0), "info"))
	a.HandleFunc("log_warning", loggerHandler(logger, "warning"))
	a.HandleFunc("log_error", loggerHandler(logger, "error"))

	subAddr, err := a.Bind(agent.BindOptions{
		Role:  transport.SUB,
		Alias: "log_sub",
		Handlers: agent.TopicHandlerSpec{
			agent.LogTopicInfo:    {Kind: agent.HandlerKindMethod, Name: "log_info"},
			agent.LogTopicWarning: {Kind: agent.HandlerKindMethod, Name: "log_warning"},
			agent.LogTopicError:   {Kind: agent.HandlerKindMethod, Name: "log_error"},
		},
	})
	if err != nil {
		return nil, transport.Address{}, nil, fmt.Errorf("operator: binding logger subscription: %w", err)
	}

	return a, subAddr, handle, nil
}

// loggerHandler builds the log_info/log_warning/log_error method bound to
// one severity: it re-emits the record through sink and appends it to the
// agent's own "log_history_<level>" attribute so a test can poll for a
// record's arrival without reaching into the sending agent's process.
func loggerHandler(sink logr.Logger, level string) agent.MethodFunc {
	historyKey := "log_history_" + level
	return func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		rec, ok := msg.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		source, _ := rec["agent"].(string)
		message, _ := rec["message"].(string)
		sent := asInt64(rec["sent_unix_nano"])

		age := "sent"
		if sent > 0 {
			age = humanize.Time(time.Unix(0, sent))
		}
		sink.Info(message, "source", source, "sent", age)

		history, _ := a.Get(historyKey)
		records, _ := history.([]agent.LogRecord)
		records = append(records, agent.LogRecord{Agent: source, Message: message, SentUnixNano: sent})
		a.Set(historyKey, records)
		return nil, nil
	}
}

// SetLogger points the agent's own warning channel, and its
// LogInfo/LogWarning/LogError calls, at the logger agent bound at
// loggerSUBAddr: it connects a PUB socket aliased "__logger__" and tells
// the agent's internal logWarning to publish through the same alias, so
// a warning the runtime raises on its own (a decode failure, a SYNC
// request timeout, a handler error) is observable by the logger too, not
// just records an agent publishes explicitly.
func SetLogger(a *agent.Agent, loggerSUBAddr transport.Address) error {
	_, err := a.Connect(agent.ConnectOptions{
		Address: loggerSUBAddr,
		Alias:   "__logger__",
	})
	if err != nil {
		return err
	}
	a.SetLoggerAlias("__logger__")
	return nil
}

// LogInfo, LogWarning, LogError publish a log record on the named agent's
// "__logger__" socket, installed by a prior call to SetLogger.
func LogInfo(a *agent.Agent, message string) error {
	return logAt(a, agent.LogTopicInfo, message)
}

func LogWarning(a *agent.Agent, message string) error {
	return logAt(a, agent.LogTopicWarning, message)
}

func LogError(a *agent.Agent, message string) error {
	return logAt(a, agent.LogTopicError, message)
}

func logAt(a *agent.Agent, topic, message string) error {
	return a.Publish("__logger__", topic, agent.LogRecord{
		Agent:        a.Name(),
		Message:      message,
		SentUnixNano: time.Now().UnixNano(),
	})
}

// asInt64 recovers an integer that round-tripped through msgpack's
// generic interface{} decoding, which picks whatever Go integer kind fits
// the encoded value.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
