// Package nats provides the NATS JetStream connection and stream used to publish tagged
// events.
package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

const (
	clientName     = "eventgen"
	connectTimeout = 5 * time.Second
	drainTimeout   = 10 * time.Second
)

// Config holds NATS connection configuration. TLS is enabled by CAFile alone (server
// verification) or by CertFile and KeyFile together (mutual TLS).
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// Client is a publishing connection. A run publishes a bounded set of events, so the
// connection gives up after a few reconnects instead of buffering forever.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
	closed chan struct{}
}

// Connect dials cfg.URL and opens a JetStream context on the connection.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	closed := make(chan struct{})
	opts, err := options(cfg, log, closed)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	log.Info("connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return &Client{conn: nc, js: js, logger: log, closed: closed}, nil
}

func options(cfg Config, log *logger.Logger, closed chan struct{}) ([]nats.Option, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL is required")
	}
	opts := []nats.Option{
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS async error", zap.Error(err))
		}),
	}

	if cfg.CAFile != "" || cfg.CertFile != "" || cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return opts, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains the connection and waits for it to close.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	select {
	case <-c.closed:
		return nil
	case <-time.After(drainTimeout + time.Second):
		c.conn.Close()
		return errors.New("timed out draining NATS connection")
	}
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", caFile)
		}
		cfg.RootCAs = pool
	}

	switch {
	case certFile != "" && keyFile != "":
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case certFile != "" || keyFile != "":
		return nil, errors.New("client certificate and key must be set together")
	}
	return cfg, nil
}
