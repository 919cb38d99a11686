package bus

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anant5441/medvoice/internal/config"
	"github.com/nats-io/nats.go"
)

// Client wraps the NATS connection with minimal helpers.
type Client struct {
	conn   *nats.Conn
	log    *slog.Logger
	closed chan struct{}
}

func Connect(cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	closed := make(chan struct{})
	options := []nats.Option{
		nats.Name("medvoice-runtime"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{
		conn:   conn,
		log:    log,
		closed: closed,
	}, nil
}

// Close drains the connection so in-flight replies are delivered, then waits
// for the drain to finish. Drain is asynchronous; the closed handler signals
// completion.
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.log.Info("draining NATS connection")
	if err := c.conn.Drain(); err != nil {
		c.log.Warn("drain failed", slog.String("error", err.Error()))
		c.conn.Close()
	}
	select {
	case <-c.closed:
	case <-time.After(5 * time.Second):
		c.log.Warn("timed out draining NATS connection")
		c.conn.Close()
	}
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

func (c *Client) Logger() *slog.Logger {
	return c.log
}

// Request performs a synchronous request/reply exchange. Each pipeline stage
// answers exactly one request, so this is the only exchange shape the
// runtime needs.
func (c *Client) Request(subject string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	return c.conn.Request(subject, data, timeout)
}
