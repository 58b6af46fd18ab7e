// Package jobs wires background task processing on top of Asynq.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRbacSeed is the task type for backfilling default access policies.
	TaskRbacSeed = "rbac:seed"
)

// RbacSeedPayload parameterizes a policy seeding run.
type RbacSeedPayload struct {
	Reason string `json:"reason"`
}

// NewRbacSeedTask constructs an Asynq task.
func NewRbacSeedTask(payload RbacSeedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRbacSeed, data), nil
}
