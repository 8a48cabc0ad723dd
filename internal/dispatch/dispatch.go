// Package dispatch delivers detection payloads through the two channels:
// a durable write to the notification sink and a best-effort push to
// connected recipients. The two are independent per payload; neither failure
// rolls back or blocks the other, and no payload failure aborts the batch.
package dispatch

import (
	"context"
	"fmt"

	"taskping/internal/model"
	"taskping/internal/push"
	"taskping/pkg/logx"
)

// Sink is the durable half of delivery.
type Sink interface {
	Append(ctx context.Context, rec model.NotificationRecord) error
}

// Pusher is the best-effort half of delivery.
type Pusher interface {
	Send(ctx context.Context, userID int64, p model.NotificationPayload) push.Result
}

// Failure records one payload-level delivery problem for observability.
type Failure struct {
	TaskID int64  `json:"task_id"`
	UserID int64  `json:"user_id"`
	Op     string `json:"op"` // "sink" or "push"
	Reason string `json:"reason"`
}

// Report summarizes one dispatch run.
type Report struct {
	Attempted int       `json:"attempted"`
	Persisted int       `json:"persisted"`
	Pushed    int       `json:"pushed"`
	Failures  []Failure `json:"failures,omitempty"`
}

func (r Report) String() string {
	return fmt.Sprintf("attempted=%d persisted=%d pushed=%d failed=%d",
		r.Attempted, r.Persisted, r.Pushed, len(r.Failures))
}

type Dispatcher struct {
	sink Sink
	push Pusher
	log  logx.Logger
}

func New(sink Sink, pusher Pusher, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{sink: sink, push: pusher, log: log}
}

// Dispatch processes the batch sequentially. Per payload it appends a record
// to the sink and attempts a push; a sink error is logged and reported but
// the push is still attempted, and vice versa.
func (d *Dispatcher) Dispatch(ctx context.Context, payloads []model.NotificationPayload) Report {
	rep := Report{Attempted: len(payloads)}

	for _, p := range payloads {
		rec := model.NewRecord(p)

		if err := d.sink.Append(ctx, rec); err != nil {
			d.log.Warn("notification persist failed",
				logx.Int64("task", p.Task.ID),
				logx.Int64("user", p.UserID),
				logx.String("kind", string(p.Kind)),
				logx.Err(err))
			rep.Failures = append(rep.Failures, Failure{
				TaskID: p.Task.ID, UserID: p.UserID, Op: "sink", Reason: err.Error(),
			})
		} else {
			rep.Persisted++
		}

		switch res := d.push.Send(ctx, p.UserID, p); res {
		case push.Delivered:
			rep.Pushed++
		case push.NotConnected:
			d.log.Debug("recipient not connected; stored only",
				logx.Int64("task", p.Task.ID), logx.Int64("user", p.UserID))
		default:
			d.log.Warn("push delivery failed",
				logx.Int64("task", p.Task.ID),
				logx.Int64("user", p.UserID),
				logx.String("result", res.String()))
			rep.Failures = append(rep.Failures, Failure{
				TaskID: p.Task.ID, UserID: p.UserID, Op: "push", Reason: res.String(),
			})
		}
	}

	return rep
}
