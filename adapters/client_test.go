package adapters

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prebid/openbid/errortypes"
	"github.com/stretchr/testify/assert"
)

func TestHTTPAdapterDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json;charset=utf-8", r.Header.Get("Content-Type"))
		assert.Equal(t, `{"id":"1"}`, string(body))
		w.Header().Set("X-Served-By", "test")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"1","seatbid":[]}`))
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Add("Content-Type", "application/json;charset=utf-8")

	client := NewHTTPAdapter(DefaultHTTPAdapterConfig)
	resp, err := client.Do(context.Background(), &RequestData{
		Method:  "POST",
		Uri:     server.URL,
		Body:    []byte(`{"id":"1"}`),
		Headers: headers,
	})

	assert.NoError(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `{"id":"1","seatbid":[]}`, string(resp.Body))
		assert.Equal(t, "test", resp.Headers.Get("X-Served-By"))
	}
}

func TestHTTPAdapterDoKeepsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPAdapter(DefaultHTTPAdapterConfig)
	resp, err := client.Do(context.Background(), &RequestData{Method: "POST", Uri: server.URL})

	assert.NoError(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHTTPAdapterDoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	client := NewHTTPAdapter(DefaultHTTPAdapterConfig)
	resp, err := client.Do(ctx, &RequestData{Method: "POST", Uri: server.URL})

	assert.Nil(t, resp)
	if assert.Error(t, err) {
		assert.IsType(t, &errortypes.Timeout{}, err)
	}
}

func TestHTTPAdapterDoBadMethod(t *testing.T) {
	client := NewHTTPAdapter(DefaultHTTPAdapterConfig)
	resp, err := client.Do(context.Background(), &RequestData{Method: "BAD METHOD", Uri: "http://localhost"})

	assert.Nil(t, resp)
	assert.IsType(t, &errortypes.FailedToRequestBids{}, err)
}
