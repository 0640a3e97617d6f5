package license

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"license-service/pkg/gen"
	"license-service/pkg/task"
	"license-service/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventPayload struct {
	LicenseID    string    `json:"licenseId"`
	LicenseKey   string    `json:"licenseKey"`
	ProductID    string    `json:"productId"`
	ActivationID string    `json:"activationId"`
	OccurredAt   time.Time `json:"occurredAt"`
}

var eventTasks = map[EventType]string{
	EventActivated:   taskname.LicenseActivated,
	EventDeactivated: taskname.LicenseDeactivated,
}

func NewEventTask(t EventType, p EventPayload) (*asynq.Task, error) {
	name, ok := eventTasks[t]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(name, payload,
		asynq.MaxRetry(5),
		asynq.Queue(task.QueueLicense),
	), nil
}

// Publisher announces committed lifecycle changes. Failures are logged by
// the service and never undo the change.
type Publisher interface {
	Publish(ctx context.Context, t EventType, p EventPayload) error
}

type TaskPublisher struct {
	enqueuer task.Enqueuer
}

func NewTaskPublisher(enqueuer task.Enqueuer) *TaskPublisher {
	return &TaskPublisher{enqueuer: enqueuer}
}

func (p *TaskPublisher) Publish(ctx context.Context, t EventType, payload EventPayload) error {
	tsk, err := NewEventTask(t, payload)
	if err != nil {
		return err
	}
	_, err = p.enqueuer.Enqueue(ctx, tsk)
	return err
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EventType, EventPayload) error { return nil }

// EventHandler consumes lifecycle tasks and records them in activation_events.
type EventHandler struct {
	db  *gorm.DB
	ids gen.IDGenerator
}

func NewEventHandler(db *gorm.DB, ids gen.IDGenerator) *EventHandler {
	return &EventHandler{db: db, ids: ids}
}

func (h *EventHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.LicenseActivated, h.HandleActivated)
	mux.HandleFunc(taskname.LicenseDeactivated, h.HandleDeactivated)
}

func (h *EventHandler) HandleActivated(ctx context.Context, t *asynq.Task) error {
	return h.record(ctx, EventActivated, t)
}

func (h *EventHandler) HandleDeactivated(ctx context.Context, t *asynq.Task) error {
	return h.record(ctx, EventDeactivated, t)
}

// record inserts the audit row. Redelivered tasks hit the unique
// (type, activation_id) index and are dropped.
func (h *EventHandler) record(ctx context.Context, typ EventType, t *asynq.Task) error {
	var p EventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.ActivationID == "" || p.LicenseID == "" {
		return fmt.Errorf("%s payload missing ids: %w", t.Type(), asynq.SkipRetry)
	}

	ev := &ActivationEvent{
		ID:           h.ids.NextID(),
		Type:         typ,
		ActivationID: p.ActivationID,
		LicenseID:    p.LicenseID,
		LicenseKey:   p.LicenseKey,
		ProductID:    p.ProductID,
		OccurredAt:   p.OccurredAt.UTC(),
	}

	res := h.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		zap.L().Error("failed to record license event",
			zap.String("type", string(typ)),
			zap.String("activation_id", p.ActivationID),
			zap.Error(res.Error),
		)
		return res.Error
	}

	if res.RowsAffected == 0 {
		zap.L().Info("duplicate license event ignored",
			zap.String("type", string(typ)),
			zap.String("activation_id", p.ActivationID),
		)
	}
	return nil
}
