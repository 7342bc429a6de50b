package queue

import (
	"errors"
	"fmt"
	"time"
)

type TaskType string

const (
	// TaskRelease deletes one blob that is no longer referenced.
	TaskRelease TaskType = "release"
	// TaskSweep scans the bucket for unreferenced blobs.
	TaskSweep TaskType = "sweep"
)

var ErrMalformedTask = errors.New("malformed task")

type Task struct {
	Type       TaskType
	Key        string
	Reason     string
	EnqueuedAt time.Time
}

func (t Task) values() map[string]any {
	return map[string]any{
		"type":       string(t.Type),
		"key":        t.Key,
		"reason":     t.Reason,
		"enqueuedAt": t.EnqueuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// DecodeTask reads a task back from stream entry fields.
func DecodeTask(values map[string]interface{}) (Task, error) {
	field := func(name string) string {
		if v, ok := values[name].(string); ok {
			return v
		}
		return ""
	}

	task := Task{
		Type:   TaskType(field("type")),
		Key:    field("key"),
		Reason: field("reason"),
	}
	if ts := field("enqueuedAt"); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Task{}, fmt.Errorf("%w: enqueuedAt: %v", ErrMalformedTask, err)
		}
		task.EnqueuedAt = parsed
	}

	switch task.Type {
	case TaskRelease:
		if task.Key == "" {
			return Task{}, fmt.Errorf("%w: release without key", ErrMalformedTask)
		}
	case TaskSweep:
	default:
		return Task{}, fmt.Errorf("%w: unknown type %q", ErrMalformedTask, task.Type)
	}
	return task, nil
}
