package tcpostgres

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:15"

// Container is a postgres instance used by leaderboard tests.
type Container struct {
	testcontainers.Container
}

type ContainerOption func(req *testcontainers.GenericContainerRequest)

func WithImage(image string) ContainerOption {
	return func(req *testcontainers.GenericContainerRequest) {
		req.Image = image
	}
}

// WithWaitStrategy combines strategies, all have to succeed within a minute.
func WithWaitStrategy(strategies ...wait.Strategy) ContainerOption {
	return func(req *testcontainers.GenericContainerRequest) {
		req.WaitingFor = wait.ForAll(strategies...).WithDeadline(time.Minute)
	}
}

func WithPort(port string) ContainerOption {
	return func(req *testcontainers.GenericContainerRequest) {
		req.ExposedPorts = append(req.ExposedPorts, port)
	}
}

// WithName names the container. Named containers are reused between test
// packages.
func WithName(name string) ContainerOption {
	return func(req *testcontainers.GenericContainerRequest) {
		req.Name = name
		req.Reuse = name != ""
	}
}

func WithInitialDatabase(user, password, dbName string) ContainerOption {
	return func(req *testcontainers.GenericContainerRequest) {
		req.Env["POSTGRES_USER"] = user
		req.Env["POSTGRES_PASSWORD"] = password
		req.Env["POSTGRES_DB"] = dbName
	}
}

// SetupPostgres starts the container. The data directory lives in memory and
// fsync is disabled, nothing survives the container.
func SetupPostgres(ctx context.Context, opts ...ContainerOption) (*Container, error) {
	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: defaultImage,
			Env:   map[string]string{},
			Cmd:   []string{"postgres", "-c", "fsync=off", "-c", "synchronous_commit=off"},
			Tmpfs: map[string]string{"/var/lib/postgresql/data": "rw"},
		},
		Started: true,
	}
	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Container{Container: container}, nil
}
