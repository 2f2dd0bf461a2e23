package httpclient

import (
	"net"
	"net/http"
	"time"

	"tasfish/internal/logging"
)

// New returns an HTTP client with a pooled transport and the given overall
// timeout. A zero timeout leaves deadlines to the request context.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	logging.OrNop(logger).Debug("http client created (timeout=%s)", timeout)
	return &http.Client{Timeout: timeout, Transport: transport}
}
