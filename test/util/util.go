// Package util provides helper functions shared across integration tests.
//
// StartMosquitto launches a disposable Mosquitto broker and StartPostgres a
// disposable PostgreSQL server, both in Docker containers. Each returns its
// address and a cleanup function.
//
// WaitForHTTP and WaitForMetric poll an endpoint until it answers or until
// the desired content appears.
package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// Default timeouts for helper operations
	HTTPTimeout           = 5 * time.Second
	MosquittoReadyTimeout = 5 * time.Second
	PostgresReadyTimeout  = 60 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// DockerAvailable reports whether the docker CLI is installed.
func DockerAvailable() bool {
	_, err := exec.LookPath("docker")
	return err == nil
}

// FreeAddr returns a loopback address with a port that was free a moment ago.
func FreeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	return addr, l.Close()
}

// WaitForHTTP polls url until it answers with HTTP 200 or the context is
// done.
func WaitForHTTP(ctx context.Context, url string) error {
	err := poll(ctx, url, func(status int, _ []byte) bool { return status == http.StatusOK })
	if err != nil {
		return fmt.Errorf("server not ready at %s: %w", url, err)
	}
	return nil
}

// WaitForMetric polls the given metrics URL until the provided substring is
// found in the output or the context is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	err := poll(ctx, metricsURL, func(_ int, body []byte) bool { return strings.Contains(string(body), substr) })
	if err != nil {
		return fmt.Errorf("metric %q not found: %w", substr, err)
	}
	return nil
}

func poll(ctx context.Context, url string, done func(status int, body []byte) bool) error {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr == nil && done(resp.StatusCode, body) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// startContainer runs req and returns the host and the mapped port of
// exposed.
func startContainer(ctx context.Context, req tc.ContainerRequest, exposed nat.Port) (string, string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", "", nil, err
	}
	cleanup := func() { _ = cont.Terminate(context.Background()) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", "", nil, err
	}
	port, err := cont.MappedPort(ctx, exposed)
	if err != nil {
		cleanup()
		return "", "", nil, err
	}
	return host, port.Port(), cleanup, nil
}

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
`

// StartMosquitto launches a temporary Mosquitto broker inside a Docker
// container and returns its broker URL along with a cleanup function.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	host, port, stop, err := startContainer(ctx, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}, "1883")
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	cleanup := func() {
		stop()
		_ = os.RemoveAll(dir)
	}

	broker := "tcp://" + net.JoinHostPort(host, port)
	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForBroker(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

func waitForBroker(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe").SetConnectTimeout(time.Second)
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("broker %s: %w", broker, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Postgres credentials used by StartPostgres.
const (
	PostgresUser     = "pailas"
	PostgresPassword = "pailas"
	PostgresDB       = "pailas"
)

// PostgresDSN returns a connection URL for database db on host:port.
func PostgresDSN(host, port, db string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		PostgresUser, PostgresPassword, net.JoinHostPort(host, port), db)
}

// StartPostgres launches a temporary PostgreSQL server and returns the host,
// the mapped port and a cleanup function.
func StartPostgres(ctx context.Context) (string, string, func(), error) {
	return startContainer(ctx, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     PostgresUser,
			"POSTGRES_PASSWORD": PostgresPassword,
			"POSTGRES_DB":       PostgresDB,
		},
		// the server restarts once after running init scripts
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(PostgresReadyTimeout),
	}, "5432")
}
