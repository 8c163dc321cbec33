package gateway

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

func newHTTPClient() (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	// Per-request deadlines come from the dispatch context; this is a backstop.
	return &http.Client{
		Transport: tr,
		Timeout:   2 * time.Minute,
	}, nil
}
