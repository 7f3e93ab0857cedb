package liveness

import (
	"time"

	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/logger"
)

type EventKind string

const (
	EventStepChange   EventKind = "step_change"
	EventLog          EventKind = "log"
	EventStatusChange EventKind = "status_change"
)

// Event is the channel form of a progress callback.
type Event struct {
	Kind      EventKind
	StepIndex int
	Sequence  []types.ChallengeAction
	Message   string
	At        time.Time
}

type NopSink struct{}

func (NopSink) OnStepChange(int, []types.ChallengeAction) {}
func (NopSink) OnLog(string)                              {}
func (NopSink) OnStatusChange(string)                     {}

// FuncSink adapts plain callbacks. Nil fields are skipped.
type FuncSink struct {
	StepChange   func(stepIndex int, sequence []types.ChallengeAction)
	Log          func(message string)
	StatusChange func(message string)
}

func (f FuncSink) OnStepChange(stepIndex int, sequence []types.ChallengeAction) {
	if f.StepChange != nil {
		f.StepChange(stepIndex, sequence)
	}
}

func (f FuncSink) OnLog(message string) {
	if f.Log != nil {
		f.Log(message)
	}
}

func (f FuncSink) OnStatusChange(message string) {
	if f.StatusChange != nil {
		f.StatusChange(message)
	}
}

// ChannelSink forwards events to a channel without blocking; events are dropped when it is full.
type ChannelSink struct {
	events chan<- Event
}

func NewChannelSink(events chan<- Event) *ChannelSink {
	return &ChannelSink{events: events}
}

func (c *ChannelSink) send(e Event) {
	e.At = time.Now()
	select {
	case c.events <- e:
	default:
	}
}

func (c *ChannelSink) OnStepChange(stepIndex int, sequence []types.ChallengeAction) {
	c.send(Event{Kind: EventStepChange, StepIndex: stepIndex, Sequence: sequence})
}

func (c *ChannelSink) OnLog(message string) {
	c.send(Event{Kind: EventLog, Message: message})
}

func (c *ChannelSink) OnStatusChange(message string) {
	c.send(Event{Kind: EventStatusChange, Message: message})
}

type MultiSink []types.EventSink

func (m MultiSink) OnStepChange(stepIndex int, sequence []types.ChallengeAction) {
	for _, s := range m {
		s.OnStepChange(stepIndex, sequence)
	}
}

func (m MultiSink) OnLog(message string) {
	for _, s := range m {
		s.OnLog(message)
	}
}

func (m MultiSink) OnStatusChange(message string) {
	for _, s := range m {
		s.OnStatusChange(message)
	}
}

// notifier shields the session from sink panics and mirrors messages to the debug log.
type notifier struct {
	sink      types.EventSink
	sessionID string
}

func (n notifier) guard(event EventKind) {
	if rec := recover(); rec != nil {
		logger.Warning("liveness event sink panicked", logger.LoggerOptions{
			Key:  "session_id",
			Data: n.sessionID,
		}, logger.LoggerOptions{
			Key:  "event",
			Data: event,
		}, logger.LoggerOptions{
			Key:  "panic",
			Data: rec,
		})
	}
}

func (n notifier) stepChange(stepIndex int, sequence []types.ChallengeAction) {
	defer n.guard(EventStepChange)
	n.sink.OnStepChange(stepIndex, sequence)
}

func (n notifier) log(message string) {
	logger.Debug(message, logger.LoggerOptions{Key: "session_id", Data: n.sessionID})
	defer n.guard(EventLog)
	n.sink.OnLog(message)
}

func (n notifier) status(message string) {
	defer n.guard(EventStatusChange)
	n.sink.OnStatusChange(message)
}
