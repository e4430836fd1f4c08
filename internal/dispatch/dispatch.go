package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webscanhq/job-triggers/internal/metrics"
)

// Trigger binds a trigger name to the job it starts and the environment
// variable the payload travels under.
type Trigger struct {
	Name   string
	Job    string
	EnvKey string
	// Subscription is the Pub/Sub subscription ID for pull mode; empty in
	// push mode.
	Subscription string
}

// JobRunner starts a named Cloud Run job with environment overrides and
// returns the execution resource name.
type JobRunner interface {
	RunJob(ctx context.Context, name string, env map[string]string) (string, error)
}

// Dispatcher turns message payloads into job executions. It holds no mutable
// state and is safe for concurrent use.
type Dispatcher struct {
	runner    JobRunner
	projectID string
	region    string
	logger    *slog.Logger
}

func New(runner JobRunner, projectID, region string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runner:    runner,
		projectID: projectID,
		region:    region,
		logger:    logger.With("component", "dispatcher"),
	}
}

// Dispatch decodes body as JSON, injects the re-serialized payload as the
// trigger's single environment variable, and starts one execution of the
// trigger's job. It never retries: a failed RunJob surfaces once and the
// delivery system owns redelivery. Returns the execution resource name.
func (d *Dispatcher) Dispatch(ctx context.Context, t Trigger, body []byte) (string, error) {
	// Any valid JSON dispatches; payloads are caller-defined and not
	// validated against a schema here.
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.DispatchesTotal.WithLabelValues(t.Name, "decode_error").Inc()
		return "", &DecodeError{err: err}
	}

	// Re-serialize rather than forwarding raw bytes. Jobs parse the variable
	// as JSON, so semantic equality is the contract, not byte fidelity.
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues(t.Name, "decode_error").Inc()
		return "", &DecodeError{err: err}
	}

	jobName := fmt.Sprintf("projects/%s/locations/%s/jobs/%s", d.projectID, d.region, t.Job)
	env := map[string]string{t.EnvKey: string(data)}

	dispatchID := uuid.New().String()[:8]
	logger := d.logger.With("trigger", t.Name, "dispatch", dispatchID)

	execution, err := d.runner.RunJob(ctx, jobName, env)
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues(t.Name, "run_error").Inc()
		logger.Error("failed to start job execution", "job", jobName, "error", err)
		return "", &ExecutionError{Job: jobName, err: err}
	}

	metrics.DispatchesTotal.WithLabelValues(t.Name, "started").Inc()
	logger.Info("started job execution", "job", jobName, "execution", execution)
	return execution, nil
}
