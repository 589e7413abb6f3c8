package aspects

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/config"
	"github.com/stretchr/testify/assert"
)

var timeoutHeaders = config.RequestTimeoutHeaders{
	RequestTimeInQueue:    "X-Time-In-Queue",
	RequestTimeoutInQueue: "X-Queue-Timeout",
}

func TestQueuedRequestTimeout(t *testing.T) {
	testCases := []struct {
		description    string
		timeInQueue    string
		queueTimeout   string
		expectedStatus int
	}{
		{"No headers", "", "", http.StatusOK},
		{"Only one header", "0.5", "", http.StatusOK},
		{"Malformed time", "soon", "1", http.StatusBadRequest},
		{"Malformed timeout", "0.5", "later", http.StatusBadRequest},
		{"Waited too long", "2", "1", http.StatusRequestTimeout},
		{"Waited exactly the timeout", "1", "1", http.StatusRequestTimeout},
		{"In time", "0.1", "1", http.StatusOK},
	}

	for _, test := range testCases {
		handler := QueuedRequestTimeout(okHandle, timeoutHeaders)
		req := httptest.NewRequest("POST", "/openbid/pubmatic/auction", nil)
		if test.timeInQueue != "" {
			req.Header.Set(timeoutHeaders.RequestTimeInQueue, test.timeInQueue)
		}
		if test.queueTimeout != "" {
			req.Header.Set(timeoutHeaders.RequestTimeoutInQueue, test.queueTimeout)
		}
		recorder := httptest.NewRecorder()
		handler(recorder, req, nil)
		assert.Equal(t, test.expectedStatus, recorder.Code, test.description)
	}
}

func TestQueuedRequestTimeoutUnconfigured(t *testing.T) {
	handler := QueuedRequestTimeout(okHandle, config.RequestTimeoutHeaders{})
	req := httptest.NewRequest("POST", "/openbid/pubmatic/auction", nil)
	recorder := httptest.NewRecorder()
	handler(recorder, req, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRateLimited(t *testing.T) {
	lmt := NewLimiter(config.RateLimit{Enabled: true, RequestsPerSecond: 1})
	handler := RateLimited(okHandle, lmt)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/openbid/pubmatic/requests", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		recorder := httptest.NewRecorder()
		handler(recorder, req, nil)
		statuses = append(statuses, recorder.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Contains(t, statuses[1:], http.StatusTooManyRequests)
}

func TestRateLimitedDisabled(t *testing.T) {
	assert.Nil(t, NewLimiter(config.RateLimit{Enabled: false, RequestsPerSecond: 1}))

	handler := RateLimited(okHandle, nil)
	for i := 0; i < 5; i++ {
		recorder := httptest.NewRecorder()
		handler(recorder, httptest.NewRequest("POST", "/openbid/pubmatic/requests", nil), nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}

func okHandle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
}
