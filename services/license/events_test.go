package license

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"license-service/pkg/task"
	"license-service/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNewEventTask(t *testing.T) {
	payload := EventPayload{
		LicenseID:    "lic-1",
		LicenseKey:   scenarioKey,
		ProductID:    "P1",
		ActivationID: "act-1",
		OccurredAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	tsk, err := NewEventTask(EventActivated, payload)
	require.NoError(t, err)
	require.Equal(t, taskname.LicenseActivated, tsk.Type())

	var decoded EventPayload
	require.NoError(t, json.Unmarshal(tsk.Payload(), &decoded))
	require.Equal(t, payload, decoded)

	tsk, err = NewEventTask(EventDeactivated, payload)
	require.NoError(t, err)
	require.Equal(t, taskname.LicenseDeactivated, tsk.Type())

	_, err = NewEventTask(EventType("renamed"), payload)
	require.Error(t, err)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, t)
	return &asynq.TaskInfo{ID: "1", Queue: task.QueueLicense, Type: t.Type()}, nil
}

func TestTaskPublisher(t *testing.T) {
	enq := &fakeEnqueuer{}
	pub := NewTaskPublisher(enq)

	require.NoError(t, pub.Publish(context.Background(), EventDeactivated, EventPayload{LicenseID: "lic-1", ActivationID: "act-1"}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, taskname.LicenseDeactivated, enq.tasks[0].Type())
}

func TestEventHandlerRecordsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := NewEventHandler(f.db, f.ids)

	tsk, err := NewEventTask(EventActivated, EventPayload{
		LicenseID:    "lic-1",
		LicenseKey:   scenarioKey,
		ProductID:    "P1",
		ActivationID: "act-1",
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleActivated(ctx, tsk))
	require.NoError(t, h.HandleActivated(ctx, tsk))

	var events []ActivationEvent
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, EventActivated, events[0].Type)
	require.Equal(t, "act-1", events[0].ActivationID)

	tsk, err = NewEventTask(EventDeactivated, EventPayload{LicenseID: "lic-1", ActivationID: "act-1", OccurredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, h.HandleDeactivated(ctx, tsk))

	var n int64
	require.NoError(t, f.db.Model(&ActivationEvent{}).Count(&n).Error)
	require.EqualValues(t, 2, n)
}

func TestEventHandlerSkipsBadPayload(t *testing.T) {
	f := newFixture(t)
	h := NewEventHandler(f.db, f.ids)

	err := h.HandleActivated(context.Background(), asynq.NewTask(taskname.LicenseActivated, []byte("{not json")))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.HandleActivated(context.Background(), asynq.NewTask(taskname.LicenseActivated, []byte(`{"licenseId":"lic-1"}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestServiceEventsCarryActivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProduct(t, "P1", true)
	lic := f.seedLicense(t, scenarioKey, "P1", StatusAvailable, true)

	_, err := f.svc.Activate(ctx, activateReq("P1", scenarioKey, "HW-001"))
	require.NoError(t, err)

	act, err := f.svc.activations.FindByLicenseID(ctx, lic.ID)
	require.NoError(t, err)

	events := f.pub.Events()
	require.Len(t, events, 1)
	require.Equal(t, act.ID, events[0].Payload.ActivationID)
	require.Equal(t, scenarioKey, events[0].Payload.LicenseKey)

	h := NewEventHandler(f.db, f.ids)
	tsk, err := NewEventTask(events[0].Type, events[0].Payload)
	require.NoError(t, err)
	require.NoError(t, h.HandleActivated(ctx, tsk))
}
