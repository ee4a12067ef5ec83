// Package labproxy implements the per-request reverse proxy that forwards a
// browser request straight to a lab container's management IP, so a
// container's web UI can be reached without exposing it on the host.
package labproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"ae3gis-labd/internal/labapi"
)

// excludedRequestHeaders are stripped before forwarding: host and
// content-length would otherwise describe the proxy's own connection to
// the client, confusing the upstream server.
var excludedRequestHeaders = map[string]bool{
	"host":           true,
	"content-length": true,
}

// excludedResponseHeaders are stripped from the upstream response before
// it's relayed back: httputil.ReverseProxy computes its own
// transfer-encoding for the hop to the client.
var excludedResponseHeaders = map[string]bool{
	"transfer-encoding": true,
}

// Inspector resolves a topology's current container states.
type Inspector interface {
	Inspect(ctx context.Context, topologyName string) []labapi.ContainerStatus
}

// Handler proxies /{topologyID}/{containerID}/{path} requests to the
// resolved container's management IP on port 80.
type Handler struct {
	Store     labapi.TopologyStore
	Inspector Inspector
	Client    *http.Client
}

// NewHandler constructs a Handler with a shared, connection-pooling HTTP
// client. The client is long-lived and should be released at process
// shutdown via CloseIdleConnections.
func NewHandler(store labapi.TopologyStore, inspector Inspector) *Handler {
	return &Handler{
		Store:     store,
		Inspector: inspector,
		Client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CloseIdleConnections releases pooled connections at process shutdown.
func (h *Handler) CloseIdleConnections() {
	h.Client.CloseIdleConnections()
}

// Target resolves (topologyID, containerID) to the upstream base URL a
// request should be proxied to, or an error classified into the labapi
// taxonomy (ErrForbidden, ErrNotFound, ErrConflict, ErrBadGateway).
func (h *Handler) Target(ctx context.Context, identity labapi.Identity, topologyID, containerID string) (*url.URL, error) {
	if !identity.CanAccess(topologyID) {
		return nil, fmt.Errorf("labproxy: %w", labapi.ErrForbidden)
	}

	t, ok, err := h.Store.Get(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("labproxy: %w: topology %s", labapi.ErrNotFound, topologyID)
	}

	status, err := h.Store.Status(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	if status != "deployed" {
		return nil, fmt.Errorf("labproxy: %w: topology is not currently deployed", labapi.ErrConflict)
	}

	dockerName := fmt.Sprintf("clab-%s-%s", t.DeploymentName(), containerID)
	containers := h.Inspector.Inspect(ctx, t.DeploymentName())

	var target *labapi.ContainerStatus
	for i := range containers {
		if containers[i].Name == dockerName {
			target = &containers[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("labproxy: %w: container %s not found in deployment", labapi.ErrNotFound, containerID)
	}
	if strings.ToLower(target.State) != "running" {
		return nil, fmt.Errorf("labproxy: %w: container %s is not running", labapi.ErrConflict, containerID)
	}

	ip, _, _ := strings.Cut(target.IPv4Address, "/")
	if ip == "" {
		return nil, fmt.Errorf("labproxy: %w: container %s has no management IP", labapi.ErrBadGateway, containerID)
	}

	return &url.URL{Scheme: "http", Host: ip + ":80"}, nil
}

// NewReverseProxy builds an httputil.ReverseProxy that forwards to target,
// rewriting the request path to strip the
// /{topologyID}/{containerID} prefix and dropping the "token" query
// parameter the caller authenticated with.
func NewReverseProxy(client *http.Client, target *url.URL, pathPrefix string) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Transport: client.Transport,
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = strings.TrimPrefix(req.URL.Path, pathPrefix)
			req.Host = target.Host

			q := req.URL.Query()
			q.Del("token")
			req.URL.RawQuery = q.Encode()

			for h := range req.Header {
				if excludedRequestHeaders[strings.ToLower(h)] {
					req.Header.Del(h)
				}
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			for h := range resp.Header {
				if excludedResponseHeaders[strings.ToLower(h)] {
					resp.Header.Del(h)
				}
			}
			// httputil.ReverseProxy already closes resp.Body once the
			// client request's context ends (via its internal use of
			// http.Request.Context cancellation on the outbound transport),
			// so no explicit release is needed here even though this
			// handler deals with long-lived streamed responses.
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(fmt.Sprintf("proxy error: %v", err)))
		},
	}
}
