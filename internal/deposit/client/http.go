package client

import (
	"net"
	"net/http"
	"time"
)

// Config holds HTTP transport settings for talking to CrossRef.
type Config struct {
	// Timeout bounds the whole request including reading the body.
	// When it expires the deposit resolves to a NoResponseError.
	Timeout time.Duration

	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration

	// UserAgent is sent with every request. CrossRef asks clients to identify themselves.
	UserAgent string
}

// DefaultConfig returns transport settings suitable for the CrossRef deposit API.
// Deposits of large issues can take a while to be acknowledged, hence the generous timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:               60 * time.Second,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 45 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		UserAgent:             "doideposit",
	}
}

func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	tr := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,
		MaxIdleConns:      10,
		IdleConnTimeout:   cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.Timeout,
	}
}
