package blockchain

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// RPCProxy is a reverse proxy that forwards JSON-RPC calls to an upstream
// Ethereum node, for operators who want to expose the same node the
// Guardian uses for direct client RPC access without handing out node
// credentials.
type RPCProxy struct {
	proxy *httputil.ReverseProxy
}

// NewRPCProxy creates a reverse proxy targeting upstreamURL.
func NewRPCProxy(upstreamURL string) (*RPCProxy, error) {
	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(target)

	base := rp.Director
	rp.Director = func(req *http.Request) {
		base(req)
		// Strip headers that could identify or correlate the originating
		// caller before they reach the upstream node.
		req.Header.Del("X-Forwarded-For")
		req.Header.Del("X-Forwarded-Host")
		req.Header.Del("X-Forwarded-Proto")
		req.Header.Del("X-Real-Ip")
		req.Header.Del("Forwarded")
		req.Header.Del("Via")
		req.Header.Del("Authorization")
		req.Host = target.Host
	}

	rp.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
		slog.Error("upstream RPC error", "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}

	return &RPCProxy{proxy: rp}, nil
}

// ServeHTTP forwards the request to the upstream RPC node.
func (r *RPCProxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.proxy.ServeHTTP(w, req)
}
