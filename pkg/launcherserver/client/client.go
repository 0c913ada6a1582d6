package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/enginelauncher/pkg/launcherserver"
	"github.com/xaionaro-go/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type Client struct {
	Target  string
	Service string
}

func New(target string) *Client {
	return &Client{
		Target:  target,
		Service: launcherserver.ServiceName,
	}
}

// ErrTLSUnsupported is returned for "tcp+ssl:" targets: the launcher
// serves its control socket without TLS.
var ErrTLSUnsupported = errors.New("TLS ('tcp+ssl:') is not supported by the launcher control socket")

func (c *Client) getGRPCDialParams() (string, []grpc.DialOption, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	parts := strings.SplitN(c.Target, ":", 2)
	if len(parts) < 2 {
		return "unix:" + c.Target, opts, nil
	}

	switch parts[0] {
	case "tcp+ssl":
		return "", nil, fmt.Errorf("invalid target '%s': %w", c.Target, ErrTLSUnsupported)
	case "tcp", "tcp4", "tcp6":
		return parts[1], opts, nil
	}
	return c.Target, opts, nil
}

func (c *Client) grpcClient() (healthpb.HealthClient, *grpc.ClientConn, error) {
	target, opts, err := c.getGRPCDialParams()
	if err != nil {
		return nil, nil, err
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to initialize a gRPC client: %w", err)
	}

	client := healthpb.NewHealthClient(conn)
	return client, conn, nil
}

func (c *Client) Check(
	ctx context.Context,
) (*healthpb.HealthCheckResponse, error) {
	client, conn, err := c.grpcClient()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: c.Service})
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	return resp, nil
}

// Watch streams the serving status changes until the server goes away or
// ctx is cancelled; the channel is closed then.
func (c *Client) Watch(
	ctx context.Context,
) (<-chan healthpb.HealthCheckResponse_ServingStatus, error) {
	client, conn, err := c.grpcClient()
	if err != nil {
		return nil, err
	}

	watcher, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: c.Service})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("query error: %w", err)
	}

	result := make(chan healthpb.HealthCheckResponse_ServingStatus)
	observability.Go(ctx, func(ctx context.Context) {
		defer conn.Close()
		defer close(result)

		for {
			resp, err := watcher.Recv()
			if err == io.EOF {
				logger.Debugf(ctx, "the receiver is closed: %v", err)
				return
			}
			if err != nil {
				if !errors.Is(err, context.Canceled) && status.Code(err) != codes.Canceled {
					logger.Errorf(ctx, "unable to read data: %v", err)
				}
				return
			}
			select {
			case result <- resp.GetStatus():
			case <-ctx.Done():
				return
			}
		}
	})

	return result, nil
}
