package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	// DefaultConnectTimeout is the maximum time to wait for initial connection
	DefaultConnectTimeout = 5 * time.Second
)

// Config holds the configuration for creating a Valkey client
type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// Client wraps valkey-go with key prefixing plus the few primitives the
// engine needs across instances: token locks and pub/sub.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that someone else re-acquired is left alone.
var releaseScript = valkeylib.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewClient connects and pings. The caller owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	return Wrap(inner, cfg.KeyPrefix), nil
}

// Wrap adopts an existing valkey-go client. A non-empty keyPrefix gets a
// trailing ":" when it lacks one.
func Wrap(inner valkeylib.Client, keyPrefix string) *Client {
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, ":") {
		keyPrefix += ":"
	}
	return &Client{
		inner:     inner,
		keyPrefix: keyPrefix,
	}
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key builds a prefixed key: Key("lease", "feed", "42") -> "azengage:lease:feed:42".
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// AcquireLock sets key to token only if it does not exist yet. Valkey
// expiry has one second resolution, shorter TTLs are rounded up.
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	err := c.inner.Do(ctx, c.inner.B().Set().Key(key).Value(token).Nx().Ex(ttl).Build()).Error()
	if err != nil {
		if IsNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleaseLock removes key if it still holds token. It reports whether the
// lock was ours.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Exec(ctx, c.inner, []string{key}, []string{token}).AsInt64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.inner.Do(ctx, c.inner.B().Publish().Channel(channel).Message(string(payload)).Build()).Error()
}

// Subscribe blocks delivering messages of channel to fn until ctx ends or
// the connection fails.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error {
	return c.inner.Receive(ctx, c.inner.B().Subscribe().Channel(channel).Build(), func(msg valkeylib.PubSubMessage) {
		fn([]byte(msg.Message))
	})
}

// IsNil checks if an error returned by the client represents a Valkey NIL response.
func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
