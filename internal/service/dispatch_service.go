package service

import (
	"context"
	"time"

	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/metrics"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
)

const defaultDispatchBatch = 200

// DispatchReport counts messages this call moved to dispatched.
type DispatchReport struct {
	Direct int `json:"direct"`
	Group  int `json:"group"`
}

func (r DispatchReport) Total() int { return r.Direct + r.Group }

// Dispatcher releases scheduled messages whose time has come. Each flip is
// conditional, so concurrent sweeps and HTTP triggers never dispatch or
// notify twice.
type Dispatcher struct {
	messageRepo      repository.MessageRepositoryInterface
	groupMessageRepo repository.GroupMessageRepositoryInterface
	groups           *GroupService
	notifier         realtime.Notifier
	batchSize        int
}

func NewDispatcher(
	messageRepo repository.MessageRepositoryInterface,
	groupMessageRepo repository.GroupMessageRepositoryInterface,
	groups *GroupService,
	notifier realtime.Notifier,
	batchSize int,
) *Dispatcher {
	if batchSize <= 0 {
		batchSize = defaultDispatchBatch
	}
	return &Dispatcher{
		messageRepo:      messageRepo,
		groupMessageRepo: groupMessageRepo,
		groups:           groups,
		notifier:         notifier,
		batchSize:        batchSize,
	}
}

// DispatchDue dispatches every message scheduled at or before now. A
// non-empty senderID limits the pass to that sender's messages. On error the
// report holds what was dispatched before the failure.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time, senderID string) (DispatchReport, error) {
	var report DispatchReport

	direct, err := d.messageRepo.FindDue(ctx, now, senderID, d.batchSize)
	if err != nil {
		return report, err
	}
	for i := range direct {
		message := &direct[i]
		won, err := d.messageRepo.MarkDispatched(ctx, message.ID)
		if err != nil {
			return report, err
		}
		if !won {
			continue
		}
		message.Dispatched = true
		report.Direct++
		metrics.MessagesDispatched.WithLabelValues("direct").Inc()
		d.notifier.Deliver(ctx, message.ReceiverID, realtime.NewMessage{MessageResponse: message.ToResponse()})
	}

	if d.groupMessageRepo == nil {
		return report, nil
	}
	grouped, err := d.groupMessageRepo.FindDue(ctx, now, senderID, d.batchSize)
	if err != nil {
		return report, err
	}
	for i := range grouped {
		message := &grouped[i]
		won, err := d.groupMessageRepo.DispatchWithUnread(ctx, message.ID)
		if err != nil {
			return report, err
		}
		if !won {
			continue
		}
		message.Dispatched = true
		report.Group++
		metrics.MessagesDispatched.WithLabelValues("group").Inc()
		if d.groups != nil {
			d.groups.fanOut(ctx, message)
		}
	}

	if report.Total() > 0 {
		logging.Ctx(ctx).Info().
			Int("direct", report.Direct).
			Int("group", report.Group).
			Str("scope", scopeLabel(senderID)).
			Msg("dispatched scheduled messages")
	}
	return report, nil
}

func scopeLabel(senderID string) string {
	if senderID == "" {
		return "all"
	}
	return senderID
}
