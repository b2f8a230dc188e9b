package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskMail             = "mail"
	TaskExpireUnverified = "expire-unverified"
)

var ErrMalformedTask = errors.New("malformed task")

// Task is one entry of the task stream. Payload holds the task-specific JSON
// body and may be empty.
type Task struct {
	ID      string
	Type    string
	Payload json.RawMessage
}

func encodeTask(taskType string, payload any) (map[string]any, error) {
	values := map[string]any{"type": taskType}
	if payload == nil {
		return values, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	values["payload"] = string(body)
	return values, nil
}

// DecodeTask reads a task back from a stream message.
func DecodeTask(msg redis.XMessage) (Task, error) {
	taskType, ok := msg.Values["type"].(string)
	if !ok || taskType == "" {
		return Task{}, fmt.Errorf("%w: message %s has no type", ErrMalformedTask, msg.ID)
	}

	task := Task{ID: msg.ID, Type: taskType}
	if raw, ok := msg.Values["payload"]; ok {
		body, ok := raw.(string)
		if !ok || !json.Valid([]byte(body)) {
			return Task{}, fmt.Errorf("%w: message %s has an invalid payload", ErrMalformedTask, msg.ID)
		}
		task.Payload = json.RawMessage(body)
	}
	return task, nil
}

// Decode unmarshals the payload into out.
func (t Task) Decode(out any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("%w: %s task %s has no payload", ErrMalformedTask, t.Type, t.ID)
	}
	return json.Unmarshal(t.Payload, out)
}
