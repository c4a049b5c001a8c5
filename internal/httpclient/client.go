// Package httpclient builds the *http.Client a transfer pool's
// connections share: one client per pool, tuned for many concurrent
// Range requests against a handful of origin hosts.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// Config parameterizes the client. HighThroughputMode widens socket
// send/receive buffers via a custom dialer, worthwhile once a pool is
// running enough concurrent range requests to saturate default kernel
// buffers.
type Config struct {
	Timeout            time.Duration
	KeepAliveTimeout   time.Duration
	ProxyURL           string
	ProxyUsername      string
	ProxyPassword      string
	UserAgent          string
	Headers            map[string]string
	HighThroughputMode bool
}

// Client wraps *http.Client with the header injection every bundle
// fetch needs (User-Agent, any static headers) so transfer.Doer
// implementations stay ignorant of configuration.
type Client struct {
	client *http.Client
	config Config
}

// New builds a Client from cfg, applying the same defaults the
// teacher's client does: a minute timeout and keep-alive idle timeout
// unless overridden, and an optional high-throughput dialer.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = 60 * time.Second
	}
	transport := &http.Transport{
		IdleConnTimeout:     cfg.KeepAliveTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
		MaxConnsPerHost:     0,
	}
	if cfg.HighThroughputMode {
		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control: func(network, address string, c syscall.RawConn) error {
				return c.Control(func(fd uintptr) {
					setSocketBuffers(fd)
				})
			},
		}).DialContext
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

// Do implements transfer.Doer: it stamps the configured User-Agent and
// static headers onto req before delegating to the underlying
// *http.Client. Range headers are left untouched — connection.go sets
// those per job.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", "rmanfetch")
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}
