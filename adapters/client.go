package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/prebid/openbid/errortypes"
	"golang.org/x/net/context/ctxhttp"
)

// HTTPAdapterConfig groups options which control how HTTP requests are made to auction endpoints.
type HTTPAdapterConfig struct {
	// See IdleConnTimeout on https://golang.org/pkg/net/http/#Transport
	IdleConnTimeout time.Duration
	// See MaxIdleConns on https://golang.org/pkg/net/http/#Transport
	MaxConns int
	// See MaxIdleConnsPerHost on https://golang.org/pkg/net/http/#Transport
	MaxConnsPerHost int
}

// HTTPAdapter executes the RequestData produced by a Bidder.
type HTTPAdapter struct {
	Transport *http.Transport
	Client    *http.Client
}

// DefaultHTTPAdapterConfig is an HTTPAdapterConfig that chooses sensible default values.
var DefaultHTTPAdapterConfig = &HTTPAdapterConfig{
	MaxConns:        50,
	MaxConnsPerHost: 10,
	IdleConnTimeout: 60 * time.Second,
}

// NewHTTPAdapter creates an HTTPAdapter which obeys the rules given by the config.
func NewHTTPAdapter(c *HTTPAdapterConfig) *HTTPAdapter {
	ts := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        c.MaxConns,
		MaxIdleConnsPerHost: c.MaxConnsPerHost,
		IdleConnTimeout:     c.IdleConnTimeout,
	}

	return &HTTPAdapter{
		Transport: ts,
		Client: &http.Client{
			Transport: ts,
		},
	}
}

// Do makes the request and returns the raw response. Responses with a failure status are still
// returned so that the Bidder can decide how to interpret them; only transport failures error.
func (a *HTTPAdapter) Do(ctx context.Context, req *RequestData) (*ResponseData, error) {
	httpReq, err := http.NewRequest(req.Method, req.Uri, bytes.NewBuffer(req.Body))
	if err != nil {
		return nil, &errortypes.FailedToRequestBids{
			Message: err.Error(),
		}
	}
	httpReq.Header = req.Headers

	httpResp, err := ctxhttp.Do(ctx, a.Client, httpReq)
	if err != nil {
		if err == context.DeadlineExceeded {
			return nil, &errortypes.Timeout{
				Message: fmt.Sprintf("request to %s timed out", req.Uri),
			}
		}
		return nil, &errortypes.FailedToRequestBids{
			Message: err.Error(),
		}
	}
	defer httpResp.Body.Close()

	respBody, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &errortypes.FailedToRequestBids{
			Message: err.Error(),
		}
	}

	return &ResponseData{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}
