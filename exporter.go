package etcnome

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/etcnome-go/internal/effects"
	"github.com/cbegin/etcnome-go/internal/logging"
	"github.com/cbegin/etcnome-go/internal/track"
)

var (
	ErrNothingToExport  = errors.New("nothing to export")
	ErrExportInProgress = errors.New("an export is already running")
)

type ExportState int

const (
	ExportEmpty ExportState = iota
	ExportReady
	ExportExporting
)

func (s ExportState) String() string {
	switch s {
	case ExportEmpty:
		return "empty"
	case ExportReady:
		return "ready"
	case ExportExporting:
		return "exporting"
	}
	return "unknown"
}

// Exporter renders whole tracks to files. Selections are ignored: an export
// always covers the default section from its first beat.
type Exporter struct {
	opts  options
	saver Saver
	log   *logrus.Entry

	mu    sync.Mutex
	state ExportState
	track *track.Track

	watch watcher[ExportState]
}

func NewExporter(saver Saver, opts ...Option) (*Exporter, error) {
	if saver == nil {
		return nil, errors.New("exporter needs a saver")
	}
	o := buildOptions(opts)
	if o.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	return &Exporter{
		opts:  o,
		saver: saver,
		log:   logging.GetProjectLogger().WithField("component", "exporter"),
	}, nil
}

func (e *Exporter) Watch() <-chan ExportState {
	return e.watch.watch()
}

func (e *Exporter) State() ExportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Exporter) setStateLocked(s ExportState) {
	if e.state == s {
		return
	}
	e.state = s
	e.watch.send(s)
}

func (e *Exporter) idleStateLocked() ExportState {
	if e.track != nil && e.track.WholeCursor().HasNext() {
		return ExportReady
	}
	return ExportEmpty
}

// SetTrack replaces the track to export. While an export runs the new track
// is only picked up by the next one.
func (e *Exporter) SetTrack(t *track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.track = t
	if e.state != ExportExporting {
		e.setStateLocked(e.idleStateLocked())
	}
}

// Export renders the track to a mono float WAV and hands it to the saver.
func (e *Exporter) Export(ctx context.Context) error {
	return e.export(ctx, "wav", func(ctx context.Context, events []track.Event) ([]byte, error) {
		var bus effects.Effector
		if e.opts.bus != nil {
			bus = e.opts.bus(e.opts.sampleRate)
		}
		samples, err := RenderOffline(ctx, events, e.opts.ensemble, e.opts.sampleRate, e.opts.workers, bus)
		if err != nil {
			return nil, err
		}
		return EncodeWAV(samples, e.opts.sampleRate)
	}, "WAV audio", "audio/wav", ".wav")
}

// ExportMIDI writes the track as a Standard MIDI File.
func (e *Exporter) ExportMIDI(ctx context.Context) error {
	return e.export(ctx, "midi", func(_ context.Context, events []track.Event) ([]byte, error) {
		return EncodeMIDI(events)
	}, "MIDI file", "audio/midi", ".mid")
}

func (e *Exporter) export(ctx context.Context, format string, encode func(context.Context, []track.Event) ([]byte, error), description, mimeType, extension string) (err error) {
	e.mu.Lock()
	if e.state == ExportExporting {
		e.mu.Unlock()
		return ErrExportInProgress
	}
	if e.track == nil || !e.track.WholeCursor().HasNext() {
		e.setStateLocked(ExportEmpty)
		e.mu.Unlock()
		return ErrNothingToExport
	}
	c := e.track.WholeCursor()
	e.setStateLocked(ExportExporting)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.setStateLocked(e.idleStateLocked())
		e.mu.Unlock()
		if err != nil {
			e.log.WithError(err).WithField("format", format).Error("export failed")
		}
	}()

	events := Drain(c)
	data, err := encode(ctx, events)
	if err != nil {
		return errors.Wrapf(err, "encode %s", format)
	}
	if err := e.saver.Save(ctx, data, description, mimeType, []string{extension}); err != nil {
		return errors.Wrap(err, "save export")
	}
	e.log.WithFields(logrus.Fields{
		"format": format,
		"events": len(events),
		"bytes":  len(data),
	}).Info("export finished")
	return nil
}
