package present

import (
	"context"
	"time"

	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"
)

type frameStats struct {
	interval time.Duration
	start    time.Duration
	frames   int
	dropped  int
	longest  time.Duration
}

func (s *frameStats) record(outcome Outcome, elapsed time.Duration) {
	if outcome.Presented {
		s.frames++
	} else {
		s.dropped++
	}
	if elapsed > s.longest {
		s.longest = elapsed
	}
}

func (s *frameStats) flush(log logrus.FieldLogger) {
	if s.interval <= 0 {
		return
	}

	now := hrtime.Now()
	window := now - s.start
	if window < s.interval {
		return
	}

	log.WithFields(logrus.Fields{
		"fps":     float64(s.frames) / window.Seconds(),
		"dropped": s.dropped,
		"longest": s.longest,
	}).Debug("frame stats")

	s.start = now
	s.frames = 0
	s.dropped = 0
	s.longest = 0
}

// Run drives Step until windowID asks to close or ctx is done. The device is idle
// when Run returns; the swapchain itself is left for Close.
func (l *Loop) Run(ctx context.Context, events EventSource, windowID uint32) error {
	rendering := true
	stats := frameStats{interval: l.options.StatsInterval, start: hrtime.Now()}

	for {
		for event, ok := events.PollEvent(); ok; event, ok = events.PollEvent() {
			switch event.Kind {
			case EventCloseRequested:
				if event.WindowID == windowID {
					return l.device.WaitIdle()
				}
				l.log.WithFields(logrus.Fields{
					"window":   event.WindowID,
					"expected": windowID,
				}).Debug("close requested for another window")
			case EventResized:
				if event.Width > 0 && event.Height > 0 {
					rendering = true
					l.Resize(event.Width, event.Height)
				} else {
					rendering = false
				}
			case EventMinimized:
				rendering = false
			case EventRestored:
				rendering = true
			}
		}

		if ctx.Err() != nil {
			err := l.device.WaitIdle()
			if err != nil {
				l.log.WithError(err).Error("wait for device idle")
			}
			return ctx.Err()
		}

		if !rendering {
			time.Sleep(l.options.PauseInterval)
			continue
		}

		start := hrtime.Now()
		outcome, err := l.Step(ctx)
		if err != nil {
			return err
		}
		stats.record(outcome, hrtime.Since(start))
		stats.flush(l.log)
	}
}
