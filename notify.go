package petalpress

import (
	"sync"

	"github.com/rs/zerolog"
)

// Notification is one emitted (message, severity) pair.
type Notification struct {
	Severity Severity
	Message  string
}

// logNotifier writes notifications to the application log and keeps the
// most recent one so the dashboard can flash it.
type logNotifier struct {
	log zerolog.Logger

	mu   sync.Mutex
	last *Notification
}

func newLogNotifier(log zerolog.Logger) *logNotifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Notify(severity Severity, message string) {
	switch severity {
	case SeverityError:
		n.log.Error().Msg(message)
	case SeverityWarning:
		n.log.Warn().Msg(message)
	default:
		n.log.Info().Msg(message)
	}
	n.mu.Lock()
	n.last = &Notification{Severity: severity, Message: message}
	n.mu.Unlock()
}

// Flash returns and clears the most recent notification.
func (n *logNotifier) Flash() *Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	last := n.last
	n.last = nil
	return last
}
