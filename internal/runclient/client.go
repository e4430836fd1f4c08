package runclient

import (
	"context"
	"fmt"

	run "cloud.google.com/go/run/apiv2"
	runpb "cloud.google.com/go/run/apiv2/runpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the Cloud Run Jobs API behind the narrow RunJob capability
// the dispatcher needs.
type Client struct {
	jobs *run.JobsClient
}

// New creates a client against the real Cloud Run API. A non-empty endpoint
// switches to an insecure unauthenticated connection, for local emulators
// and tests.
func New(ctx context.Context, endpoint string) (*Client, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts,
			option.WithEndpoint(endpoint),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	jobs, err := run.NewJobsClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating jobs client: %w", err)
	}
	return &Client{jobs: jobs}, nil
}

// RunJob starts one execution of the named job, overriding the first
// container's environment with the given variables. The call is made exactly
// once; errors are returned as-is for the caller to classify.
func (c *Client) RunJob(ctx context.Context, name string, env map[string]string) (string, error) {
	var envVars []*runpb.EnvVar
	for k, v := range env {
		envVars = append(envVars, &runpb.EnvVar{
			Name:   k,
			Values: &runpb.EnvVar_Value{Value: v},
		})
	}

	op, err := c.jobs.RunJob(ctx, &runpb.RunJobRequest{
		Name: name,
		Overrides: &runpb.RunJobRequest_Overrides{
			ContainerOverrides: []*runpb.RunJobRequest_Overrides_ContainerOverride{
				{Env: envVars},
			},
		},
	})
	if err != nil {
		return "", err
	}

	// The operation metadata carries the execution; fall back to the
	// operation name, which Cloud Run sets to the execution resource name.
	if meta, err := op.Metadata(); err == nil && meta.Name != "" {
		return meta.Name, nil
	}
	return op.Name(), nil
}

func (c *Client) Close() error {
	return c.jobs.Close()
}
