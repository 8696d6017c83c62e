package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/extractrelay/applications/relay"
	"github.com/donmikel/extractrelay/applications/relay/domain"
	"github.com/donmikel/extractrelay/applications/relay/interfaces"
	"github.com/donmikel/extractrelay/applications/relay/metrics"
)

type service struct {
	processor interfaces.Processor
	metrics   *metrics.Collector
	logger    log.Logger
	now       func() time.Time
}

func NewService(processor interfaces.Processor, collector *metrics.Collector, logger log.Logger) relay.ExtractService {
	return &service{
		processor: processor,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Extract forwards the file downstream exactly once and returns whatever
// the downstream service answered, whatever its status code.
func (s *service) Extract(ctx context.Context, file domain.File) (domain.Result, error) {
	size := len(file.Content)
	s.metrics.ObserveUpload(size)

	level.Info(s.logger).Log("msg", "forwarding file",
		"request_id", domain.RequestIDFromContext(ctx),
		"filename", file.Name,
		"size", humanize.Bytes(uint64(size)),
		"downstream", s.processor.GetURL(),
	)

	start := s.now()
	res, err := s.processor.Process(ctx, file)
	if err != nil {
		return domain.Result{}, fmt.Errorf("can't process file %q: %w", file.Name, err)
	}
	s.metrics.ObserveDownstream(res.StatusCode, s.now().Sub(start))

	if res.StatusCode >= 400 {
		level.Warn(s.logger).Log("msg", "downstream answered with error status, relaying as is",
			"request_id", domain.RequestIDFromContext(ctx),
			"status", res.StatusCode,
		)
	}

	return res, nil
}
