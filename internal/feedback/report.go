package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/untold/internal/logger"
)

// DefaultReportWindow is how often ReportErrors summarizes failures.
const DefaultReportWindow = time.Minute

// ReportErrors reads dispatch failures until ctx ends and logs one Error
// entry per window in which deliveries failed. Each failure is already
// logged at Warn by the dispatcher; the summary is what alerting watches.
func ReportErrors(ctx context.Context, errs <-chan error, log logger.Logger, window time.Duration) {
	if window <= 0 {
		window = DefaultReportWindow
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	var (
		failures int
		last     error
		diaries  = make(map[string]struct{})
	)
	flush := func() {
		if failures == 0 {
			return
		}
		log.Error("feedback deliveries failing",
			logger.Int("failures", failures),
			logger.Int("diaries", len(diaries)),
			logger.Duration("window", window),
			logger.Error(last))
		failures, last = 0, nil
		clear(diaries)
	}

	for {
		select {
		case err, ok := <-errs:
			if !ok {
				flush()
				return
			}
			failures++
			last = err
			var de *DispatchError
			if errors.As(err, &de) {
				diaries[de.DiaryID] = struct{}{}
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
