package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const connectTimeout = 5 * time.Second

// Credentials identify the caller to the ASR endpoint; they are looked up
// preferentially from environment variables by the configuration loader, not
// committed to disk.
type Credentials struct {
	AppKey     string
	AccessKey  string
	ResourceID string
}

// Result is delivered for every successfully decoded FullServerResponse,
// except that a result is dropped when the 16-entry results buffer is full.
type Result struct {
	Text    string
	IsFinal bool
}

// Client speaks the binary WebSocket ASR protocol over one connection.
// connect/send/close are safe to call from a single goroutine at a time;
// Recv is read from a dedicated loop goroutine started by Connect.
type Client struct {
	endpoint    string
	credentials Credentials
	connectID   string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	results chan Result
	errs    chan error
}

// NewClient returns a Client that has not yet dialed anything.
func NewClient(endpoint string, credentials Credentials, connectID string) *Client {
	return &Client{
		endpoint:    endpoint,
		credentials: credentials,
		connectID:   connectID,
		results:     make(chan Result, 16),
		errs:        make(chan error, 1),
	}
}

// Connect dials the endpoint (bounded to 5s), sends the session handshake,
// and starts the background receive loop. It resolves with an error if the
// dial or the handshake send fails; no handshake acknowledgement is awaited.
func (c *Client) Connect(ctx context.Context, opts HandshakeOptions) error {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("X-Api-App-Key", c.credentials.AppKey)
	header.Set("X-Api-Access-Key", c.credentials.AccessKey)
	header.Set("X-Api-Resource-Id", c.credentials.ResourceID)
	header.Set("X-Api-Connect-Id", c.connectID)

	conn, _, err := websocket.Dial(dialCtx, c.endpoint, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial asr endpoint: %w", err)
	}
	conn.SetReadLimit(8 << 20)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	handshakeJSON, err := buildHandshakePayload(opts)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "handshake encode failed")
		return err
	}
	frame, err := buildFullClientRequest(handshakeJSON)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "handshake frame failed")
		return err
	}
	if err := conn.Write(dialCtx, websocket.MessageBinary, frame); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "handshake send failed")
		return fmt.Errorf("send handshake: %w", err)
	}

	go c.recvLoop()
	return nil
}

// Send streams one batch of PCM as a gzip-compressed AudioOnly frame.
// isLast marks the session's final frame.
func (c *Client) Send(ctx context.Context, pcm []byte, isLast bool) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("transport: send before connect")
	}

	frame, err := buildAudioFrame(pcm, isLast)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("send audio frame: %w", err)
	}
	return nil
}

// Results delivers decoded transcript updates.
func (c *Client) Results() <-chan Result {
	return c.results
}

// Errors delivers at most one terminal error from the receive loop or a
// server Error frame.
func (c *Client) Errors() <-chan error {
	return c.errs
}

func (c *Client) recvLoop() {
	ctx := context.Background()
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, payload, err := conn.Read(ctx)
		if err != nil {
			c.reportError(fmt.Errorf("read asr frame: %w", err))
			return
		}

		msg, err := parseServerFrame(payload)
		if err != nil {
			c.reportError(fmt.Errorf("decode asr frame: %w", err))
			return
		}
		if msg.IsError {
			c.reportError(fmt.Errorf("asr error %d: %s", msg.Code, msg.Message))
			return
		}

		select {
		case c.results <- Result{Text: msg.Text, IsFinal: msg.IsFinal}:
		default:
		}
	}
}

func (c *Client) reportError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// Close idempotently tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		c.closed = true
		return nil
	}
	c.closed = true
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
