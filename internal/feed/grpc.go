package feed

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// frame is one raw JSON message carried over gRPC.
type frame []byte

// frameCodec passes frames through untouched so the stream carries the same
// JSON payloads as the websocket transport, without generated stubs.
type frameCodec struct{}

func (frameCodec) Name() string {
	return "json"
}

func (frameCodec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *frame:
		return *m, nil
	case frame:
		return m, nil
	}
	return jsoniter.Marshal(v)
}

func (frameCodec) Unmarshal(data []byte, v interface{}) error {
	f, ok := v.(*frame)
	if !ok {
		return jsoniter.Unmarshal(data, v)
	}
	*f = append((*f)[:0], data...)
	return nil
}

// GRPCDialer subscribes to the push stream through a server-streaming gRPC
// method. Each response message is one JSON event frame.
type GRPCDialer struct {
	addr        string
	method      string
	tlsConfig   *tls.Config
	dialTimeout time.Duration
}

// NewGRPCDialer creates a dialer for addr (host:port) and a full method name.
// A nil tlsCfg dials without transport security.
func NewGRPCDialer(addr, method string, tlsCfg *tls.Config, dialTimeout time.Duration) *GRPCDialer {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &GRPCDialer{
		addr:        addr,
		method:      method,
		tlsConfig:   tlsCfg,
		dialTimeout: dialTimeout,
	}
}

// Target returns the address and method.
func (d *GRPCDialer) Target() string {
	return "grpc://" + d.addr + d.method
}

// Dial connects, opens the stream and sends the empty subscribe request.
func (d *GRPCDialer) Dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()

	var creds credentials.TransportCredentials
	if d.tlsConfig != nil {
		creds = credentials.NewTLS(d.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	// WithBlock keeps a failed dial a dial error instead of a first-read error.
	conn, err := grpc.DialContext(
		dialCtx,
		d.addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(frameCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", d.addr, err)
	}

	streamCtx, streamCancel := context.WithCancel(ctx)
	stream, err := conn.NewStream(streamCtx, &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}, d.method)
	if err != nil {
		streamCancel()
		conn.Close()
		return nil, fmt.Errorf("open stream %s: %w", d.method, err)
	}
	req := frame("{}")
	if err := stream.SendMsg(&req); err != nil {
		streamCancel()
		conn.Close()
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		streamCancel()
		conn.Close()
		return nil, fmt.Errorf("close send: %w", err)
	}
	return &grpcConn{conn: conn, stream: stream, cancel: streamCancel}, nil
}

type grpcConn struct {
	conn      *grpc.ClientConn
	stream    grpc.ClientStream
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

func (c *grpcConn) Read(_ context.Context) ([]byte, error) {
	var f frame
	if err := c.stream.RecvMsg(&f); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *grpcConn) Close(_ string) error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
