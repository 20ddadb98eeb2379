package worker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"minutes/internal/artifacts"
	"minutes/internal/logging"
	"minutes/internal/queue"
)

// HandleFailure is the worker pool's failure hook, invoked after a stage
// handler returns an error. A marker the stage already wrote keeps its stage
// and message; the hook only merges in the task details. Without a marker the
// stage is inferred from the task name. The job directory is never created
// here: a failure for a job whose directory is gone has nothing to attach a
// marker to.
func (o *Orchestrator) HandleFailure(ctx context.Context, task queue.Task, taskErr error) error {
	jobID := strings.TrimSpace(task.JobID)
	if jobID == "" {
		o.logger.ErrorContext(ctx, "failed task carries no job id",
			logging.String("task", string(task.Name)),
			logging.Error(taskErr))
		return nil
	}

	jobDir := o.jobDir(task)
	info, err := os.Stat(jobDir)
	if err != nil || !info.IsDir() {
		o.logger.ErrorContext(ctx, "job directory missing, skipping failure marker",
			logging.String(logging.FieldJobID, jobID),
			logging.String("job_directory", jobDir),
			logging.Error(taskErr))
		return nil
	}

	stage := o.stageForTask(ctx, task)
	message := taskErr.Error()

	existing, err := artifacts.LoadJobFailure(jobDir)
	if err != nil {
		o.logger.WarnContext(ctx, "unreadable failure marker, rewriting",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	}
	details := map[string]any{}
	if existing != nil {
		stage = existing.Stage
		message = existing.Message
		for key, value := range existing.Details {
			details[key] = value
		}
	}
	details["task_id"] = task.ID
	details["task"] = string(task.Name)
	details["error"] = taskErr.Error()

	if err := artifacts.MarkJobFailed(jobDir, stage, message, details); err != nil {
		return fmt.Errorf("write failure marker: %w", err)
	}

	o.logger.ErrorContext(ctx, "job failed",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldStage, stage),
		logging.String("task", string(task.Name)),
		logging.Error(taskErr))

	if err := o.notifier.NotifyJobFailed(ctx, jobID, stage, message); err != nil {
		o.logger.WarnContext(ctx, "failure notification failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	}
	return nil
}

// stageForTask maps a task name to the stage recorded in the failure marker.
func (o *Orchestrator) stageForTask(ctx context.Context, task queue.Task) string {
	name, ok := queue.ParseTaskName(string(task.Name))
	if !ok {
		o.logger.WarnContext(ctx, "unknown task name, attributing failure to upload",
			logging.String("task", string(task.Name)))
		return artifacts.StageUpload
	}
	switch name {
	case queue.TaskTranscribe:
		return artifacts.StageTranscription
	case queue.TaskSummarize:
		return artifacts.StageSummary
	default:
		return artifacts.StageUpload
	}
}
