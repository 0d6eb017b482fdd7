package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/jobs"
)

const statusUpdateJobType = "status_update"

type statusUpdater interface {
	SendStatusUpdate(ctx context.Context, senderRef, reportID string, status models.ReportStatus) error
}

type senderOpener interface {
	Open(sealed string) (string, error)
}

type statusUpdatePayload struct {
	ChannelRef string
	ReportID   string
	Status     models.ReportStatus
}

// OutboundDispatcher delivers status updates to channel senders off the
// request path using a worker queue.
type OutboundDispatcher struct {
	updater statusUpdater
	opener  senderOpener
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewOutboundDispatcher builds a dispatcher and its queue. Call Start before
// notifying.
func NewOutboundDispatcher(updater statusUpdater, opener senderOpener, cfg jobs.QueueConfig, logger *zap.Logger) *OutboundDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	d := &OutboundDispatcher{updater: updater, opener: opener, logger: logger}
	cfg.OnGiveUp = d.abandon
	d.queue = jobs.NewQueue("outbound-messages", d.handle, cfg)
	return d
}

// Start launches the delivery workers.
func (d *OutboundDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for the workers to exit. Queued updates are discarded.
func (d *OutboundDispatcher) Stop() {
	d.queue.Stop()
}

// NotifyStatusChange queues a status update. It never blocks; a rejected
// job is logged.
func (d *OutboundDispatcher) NotifyStatusChange(channelRef, reportID string, status models.ReportStatus) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    statusUpdateJobType,
		Payload: statusUpdatePayload{ChannelRef: channelRef, ReportID: reportID, Status: status},
	}
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Error("status update not queued",
			zap.String("code", appErrors.ErrExternalChannel.Code),
			zap.String("report_id", reportID),
			zap.Error(err),
		)
	}
}

func (d *OutboundDispatcher) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(statusUpdatePayload)
	if !ok {
		d.logger.Error("unexpected outbound payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	senderRef, err := d.opener.Open(payload.ChannelRef)
	if err != nil {
		d.logger.Error("cannot open sender reference", zap.String("report_id", payload.ReportID), zap.Error(err))
		return nil
	}
	if err := d.updater.SendStatusUpdate(ctx, senderRef, payload.ReportID, payload.Status); err != nil {
		d.logger.Warn("status update delivery failed",
			zap.String("code", appErrors.ErrExternalChannel.Code),
			zap.String("report_id", payload.ReportID),
			zap.Int("attempt", job.Attempt+1),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (d *OutboundDispatcher) abandon(job jobs.Job, err error) {
	payload, _ := job.Payload.(statusUpdatePayload)
	d.logger.Error("status update abandoned",
		zap.String("code", appErrors.ErrExternalChannel.Code),
		zap.String("report_id", payload.ReportID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}
