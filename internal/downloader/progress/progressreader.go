package progress

import (
	"errors"
	"io"
)

// Reader wraps an io.Reader and reports the cumulative byte count via a callback.
// Reported values never decrease. A final report is emitted when the wrapped reader hits EOF.
type Reader struct {
	Reader     io.Reader
	Total      int64 // expected size, 0 or negative when unknown
	OnProgress func(written int64, total int64)

	totalRead      int64
	lastReport     int64 // bytes since last report
	reportInterval int64
	done           bool
}

func NewReader(r io.Reader, total int64, interval int64, cb func(written int64, total int64)) *Reader {
	if interval <= 0 {
		interval = 1
	}

	return &Reader{
		Reader:         r,
		Total:          total,
		OnProgress:     cb,
		reportInterval: interval,
	}
}

// Written returns the number of bytes read so far.
func (pr *Reader) Written() int64 {
	return pr.totalRead
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.totalRead += int64(n)
		pr.lastReport += int64(n)

		if pr.lastReport >= pr.reportInterval {
			pr.report()
		}
	}

	if errors.Is(err, io.EOF) && !pr.done {
		pr.done = true
		if pr.lastReport > 0 || pr.totalRead == 0 {
			pr.report()
		}
	}

	return n, err
}

func (pr *Reader) report() {
	pr.lastReport = 0

	if pr.OnProgress != nil {
		pr.OnProgress(pr.totalRead, pr.Total)
	}
}
