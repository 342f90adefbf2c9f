package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"keyrunner/internal/registry"
	"keyrunner/internal/template"
	"keyrunner/pkg/logging"
)

// maxResponseBody bounds how much of an HTTP response a step keeps.
const maxResponseBody = 1 << 20

func networkPack(env *Environment) []registry.Descriptor {
	return []registry.Descriptor{
		{
			Keyword:     "check_port",
			Category:    CategoryNetwork,
			Description: "Check that a TCP port accepts connections",
			Params: []registry.ParamSpec{
				param("host", true, "host name or address"),
				param("port", true, "TCP port"),
				param("timeout", false, "dial timeout, default 5s"),
			},
			Handler: checkPort,
		},
		{
			Keyword:     "http_request",
			Category:    CategoryNetwork,
			Description: "Send an HTTP request with retries and return status, headers and body",
			Params: []registry.ParamSpec{
				param("url", true, "absolute URL or path relative to http.base_url"),
				param("method", false, "HTTP method, default GET"),
				param("headers", false, "request headers"),
				param("body", false, "string body, or a mapping sent as JSON"),
				param("expect_status", false, "required status code"),
			},
			Handler: env.httpRequest,
		},
		{
			Keyword:     "ping",
			Category:    CategoryNetwork,
			Description: "Send ICMP echo requests and return success, packet_loss and output",
			Params: []registry.ParamSpec{
				param("host", true, "host name or address"),
				param("count", false, "number of requests, default 4"),
				param("timeout", false, "per-reply timeout, default 5s"),
				param("check", false, "fail when the host does not answer, default true"),
			},
			Handler: env.ping,
		},
		{
			Keyword:     "check_nodes",
			Category:    CategoryNetwork,
			Description: "Ping every node and dial its service port, returning one report per node",
			Params: []registry.ParamSpec{
				param("nodes", true, "list of {name, host, port} mappings"),
				param("port", false, "port used when a node has none, default 22"),
				param("count", false, "ping requests per node, default 2"),
				param("timeout", false, "ping and dial timeout, default 5s"),
				param("parallel", false, "nodes checked at once, default 4"),
				param("check", false, "fail when any node fails, default true"),
			},
			Handler: env.checkNodes,
		},
	}
}

func checkPort(ctx context.Context, params map[string]any) (any, error) {
	host, err := requiredString(params, "host")
	if err != nil {
		return nil, err
	}
	port, err := intParam(params, "port", 0)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	timeout, err := durationParam(params, "timeout", 5*time.Second)
	if err != nil {
		return nil, err
	}

	return dialPort(ctx, host, port, timeout), nil
}

// dialPort reports whether a TCP connection to host:port succeeds.
func dialPort(ctx context.Context, host string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logging.Debug("Actions", "dial %s: %v", addr, err)
		return false
	}
	_ = conn.Close()
	return true
}

func (e *Environment) httpRequest(ctx context.Context, params map[string]any) (any, error) {
	url, err := requiredString(params, "url")
	if err != nil {
		return nil, err
	}
	if !strings.Contains(url, "://") && e.HTTPBaseURL != "" {
		url = strings.TrimRight(e.HTTPBaseURL, "/") + "/" + strings.TrimLeft(url, "/")
	}
	method, _ := stringParam(params, "method", false)
	if method == "" {
		method = http.MethodGet
	}
	headers, err := mapParam(params, "headers")
	if err != nil {
		return nil, err
	}

	var body []byte
	switch b := params["body"].(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		body, err = json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		if _, ok := headers["Content-Type"]; !ok {
			headers = withHeader(headers, "Content-Type", "application/json")
		}
	}

	var reqBody any
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, strings.ToUpper(method), url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, template.Stringify(v))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}
	result := map[string]any{
		"status":  resp.StatusCode,
		"headers": respHeaders,
		"body":    string(data),
	}
	var decoded any
	if json.Unmarshal(data, &decoded) == nil {
		result["json"] = decoded
	}

	if _, ok := params["expect_status"]; ok {
		want, err := intParam(params, "expect_status", 0)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != want {
			return nil, fmt.Errorf("%s %s returned status %d, expected %d", method, url, resp.StatusCode, want)
		}
	}
	return result, nil
}

func withHeader(headers map[string]any, key, value string) map[string]any {
	out := make(map[string]any, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[key] = value
	return out
}
