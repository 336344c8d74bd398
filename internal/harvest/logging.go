package harvest

import (
	"github.com/sirupsen/logrus"
)

// MessageSink receives every human-readable log line of a run
type MessageSink func(msg string)

// messageHook forwards log entries to a MessageSink
type messageHook struct {
	sink MessageSink
}

func (h *messageHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *messageHook) Fire(entry *logrus.Entry) error {
	h.sink(entry.Message)
	return nil
}

// newRunLogger returns a logger that writes like the standard logger and also
// feeds sink when one is given
func newRunLogger(sink MessageSink) *logrus.Logger {
	std := logrus.StandardLogger()

	l := logrus.New()
	l.SetOutput(std.Out)
	l.SetFormatter(std.Formatter)
	l.SetLevel(std.GetLevel())
	if sink != nil {
		l.AddHook(&messageHook{sink: sink})
	}
	return l
}
