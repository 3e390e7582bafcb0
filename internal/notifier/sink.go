package notifier

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/logctx"
)

// LogSink writes status messages and progress ticks to the logger carried in the context.
type LogSink struct{}

func (LogSink) Status(ctx context.Context, item acquisition.ContentItemRef, message string) {
	logctx.LoggerFromContext(ctx).InfoContext(ctx, message, "title", acquisition.DisplayTitle(item.Title))
}

func (LogSink) Progress(ctx context.Context, _ acquisition.ContentItemRef, written, total int64) {
	logger := logctx.LoggerFromContext(ctx)

	if total <= 0 {
		logger.DebugContext(ctx, "acquisition progress", "downloaded", humanize.Bytes(uint64(written)))

		return
	}

	logger.DebugContext(ctx, "acquisition progress",
		"downloaded", humanize.Bytes(uint64(written)),
		"total", humanize.Bytes(uint64(total)),
		"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2),
	)
}

// NotifierSink forwards status messages to a Notifier. Progress ticks are dropped; webhooks are
// rate limited and ticks arrive far too often.
type NotifierSink struct {
	Notifier Notifier
}

func (s NotifierSink) Status(ctx context.Context, item acquisition.ContentItemRef, message string) {
	content := acquisition.DisplayTitle(item.Title) + " [" + item.ID + "]\n" + message

	if err := s.Notifier.Notify(ctx, content); err != nil {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "failed to send notification", "err", err)
	}
}

func (NotifierSink) Progress(context.Context, acquisition.ContentItemRef, int64, int64) {}

// Multi fans every call out to all sinks, in order. Nil sinks are skipped.
func Multi(sinks ...acquisition.StatusSink) acquisition.StatusSink {
	out := make(multiSink, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}

	return out
}

type multiSink []acquisition.StatusSink

func (m multiSink) Status(ctx context.Context, item acquisition.ContentItemRef, message string) {
	for _, s := range m {
		s.Status(ctx, item, message)
	}
}

func (m multiSink) Progress(ctx context.Context, item acquisition.ContentItemRef, written, total int64) {
	for _, s := range m {
		s.Progress(ctx, item, written, total)
	}
}
