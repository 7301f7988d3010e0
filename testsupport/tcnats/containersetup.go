//nolint:errcheck // testsetup
package tcnats

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type NatsContainer struct {
	testcontainers.Container
}

type NatsContainerOption func(req *testcontainers.ContainerRequest)

func WithName(containerName string) NatsContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Name = containerName
	}
}

// SetupNats starts a nats server with jetstream enabled
func SetupNats(ctx context.Context, opts ...NatsContainerOption) (*NatsContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10",
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor: wait.ForLog("Server is ready").
			WithStartupTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(&req)
	}
	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            true,
		})
	if err != nil {
		return nil, err
	}
	return &NatsContainer{Container: container}, nil
}

// NatsURL returns the url of an external nats server (TESTNATS_URL) or of a
// test container started on demand.
func NatsURL() string {
	if url := os.Getenv("TESTNATS_URL"); url != "" {
		return url
	}
	ctx := context.Background()
	port, _ := nat.NewPort("tcp", "4222")
	container, err := SetupNats(ctx, WithName("nebula-racers-nats-test"))
	if err != nil {
		log.Fatal(err)
	}
	mapped, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	return fmt.Sprintf("nats://%s:%s", host, mapped.Port())
}

func Connect(url string) *nats.Conn {
	conn, err := nats.Connect(url, nats.Name("nebula-racers-test"))
	if err != nil {
		log.Fatal(err)
	}
	return conn
}
