package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers the daily sweep on a cron expression evaluated
// in Vietnam time.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  *log.Logger
}

func NewScheduler(service *Service, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.FixedZone("ICT", 7*60*60))),
		service: service,
		logger:  logger,
	}
}

// Register adds the sweep job. The expression uses standard five field
// cron syntax, for example "0 6 * * *" for six in the morning.
func (s *Scheduler) Register(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		success, failed := s.service.Run(ctx)
		s.logger.Printf("notify: daily sweep done, success=%d failed=%d", success, failed)
	})
	if err != nil {
		return fmt.Errorf("register daily cron %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
