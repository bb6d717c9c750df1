package logmonitor

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// AlertSink receives an alert when a severity crosses its threshold.
type AlertSink interface {
	Alert(level logrus.Level, count int64, message string)
}

// AlertFunc adapts a plain function to AlertSink.
type AlertFunc func(level logrus.Level, count int64, message string)

// Alert implements AlertSink.
func (f AlertFunc) Alert(level logrus.Level, count int64, message string) {
	f(level, count, message)
}

// Config sets how many events of each severity are tolerated before the sink
// fires. A zero threshold disables alerting for that severity.
type Config struct {
	WarnThreshold  int64 `json:"warn_threshold" yaml:"warn_threshold"`
	ErrorThreshold int64 `json:"error_threshold" yaml:"error_threshold"`
}

// Monitor is a logrus hook that counts warning and error events and notifies
// its sink when a threshold is crossed. It is an owned value constructed with
// explicit configuration, attached to whichever logger needs alerting; there
// is no process-global counter.
type Monitor struct {
	config *Config
	sink   AlertSink

	mu     sync.Mutex
	warns  int64
	errors int64
}

// New creates a monitor with the given thresholds and sink. A nil sink counts
// but never notifies.
func New(config *Config, sink AlertSink) *Monitor {
	if config == nil {
		config = &Config{}
	}
	return &Monitor{
		config: config,
		sink:   sink,
	}
}

// Levels implements logrus.Hook.
func (m *Monitor) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}

// Fire implements logrus.Hook.
func (m *Monitor) Fire(entry *logrus.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch entry.Level {
	case logrus.WarnLevel:
		m.warns++
		if m.sink != nil && m.config.WarnThreshold > 0 && m.warns == m.config.WarnThreshold {
			m.sink.Alert(logrus.WarnLevel, m.warns, entry.Message)
		}
	default:
		m.errors++
		if m.sink != nil && m.config.ErrorThreshold > 0 && m.errors == m.config.ErrorThreshold {
			m.sink.Alert(logrus.ErrorLevel, m.errors, entry.Message)
		}
	}

	return nil
}

// Counts returns the warning and error totals seen so far.
func (m *Monitor) Counts() (warns, errors int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warns, m.errors
}

// Reset zeroes both counters, re-arming the thresholds.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns, m.errors = 0, 0
}
