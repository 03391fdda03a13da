package modemlink

import "sync/atomic"

type counters struct {
	events         atomic.Uint64
	callbacks      atomic.Uint64
	callbackErrors atomic.Uint64
	unhandled      atomic.Uint64
	overflows      atomic.Uint64
	lineErrors     atomic.Uint64
	unknown        atomic.Uint64
	bytesSent      atomic.Uint64
	bytesReceived  atomic.Uint64
}

// Stats is a snapshot of transport activity since New.
type Stats struct {
	Events         uint64 `yaml:"events"`
	Callbacks      uint64 `yaml:"callbacks"`
	CallbackErrors uint64 `yaml:"callback_errors"`
	// Unhandled counts data events that arrived with no callback registered.
	Unhandled     uint64 `yaml:"unhandled"`
	Overflows     uint64 `yaml:"overflows"`
	LineErrors    uint64 `yaml:"line_errors"`
	UnknownEvents uint64 `yaml:"unknown_events"`
	BytesSent     uint64 `yaml:"bytes_sent"`
	BytesReceived uint64 `yaml:"bytes_received"`
}

// Stats returns the current counters.
func (t *Transport) Stats() Stats {
	return Stats{
		Events:         t.stats.events.Load(),
		Callbacks:      t.stats.callbacks.Load(),
		CallbackErrors: t.stats.callbackErrors.Load(),
		Unhandled:      t.stats.unhandled.Load(),
		Overflows:      t.stats.overflows.Load(),
		LineErrors:     t.stats.lineErrors.Load(),
		UnknownEvents:  t.stats.unknown.Load(),
		BytesSent:      t.stats.bytesSent.Load(),
		BytesReceived:  t.stats.bytesReceived.Load(),
	}
}
