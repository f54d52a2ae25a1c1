// Package logging wraps logrus with a broadcast point so that a status
// surface (statusapi) or a future UI can tail log lines without this
// module depending on either.
package logging

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a thin façade over a logrus.Logger that also fans every
// formatted line out to subscribers (see Subscribe).
type Logger struct {
	entry *logrus.Logger

	mu          sync.RWMutex
	subscribers map[chan string]struct{}
}

// New builds a Logger writing structured, leveled output via logrus.
func New(level logrus.Level) *Logger {
	base := logrus.New()
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{
		entry:       base,
		subscribers: make(map[chan string]struct{}),
	}
}

func (l *Logger) broadcast(line string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for ch := range l.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribe returns a channel receiving every log line emitted after this
// call. Callers must Unsubscribe when done.
func (l *Logger) Subscribe() chan string {
	ch := make(chan string, 256)
	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

func (l *Logger) Unsubscribe(ch chan string) {
	l.mu.Lock()
	if _, ok := l.subscribers[ch]; ok {
		delete(l.subscribers, ch)
		close(ch)
	}
	l.mu.Unlock()
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
	l.broadcast(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
	l.broadcast(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
	l.broadcast(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
	l.broadcast(fmt.Sprintf(format, args...))
}
