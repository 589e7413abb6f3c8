package aspects

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/config"
)

// QueuedRequestTimeout drops requests which spent their whole budget queued in front of the
// service. The load balancer reports both values, in seconds, through the configured headers;
// requests without them are served as usual.
func QueuedRequestTimeout(f httprouter.Handle, headers config.RequestTimeoutHeaders) httprouter.Handle {
	if headers.RequestTimeInQueue == "" || headers.RequestTimeoutInQueue == "" {
		return f
	}

	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		status, err := queueStatus(r.Header.Get(headers.RequestTimeInQueue), r.Header.Get(headers.RequestTimeoutInQueue))
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		f(w, r, params)
	}
}

// queueStatus returns the status to answer with when the request must not be served.
func queueStatus(timeInQueue, queueTimeout string) (int, error) {
	if timeInQueue == "" || queueTimeout == "" {
		return http.StatusOK, nil
	}

	waited, err := strconv.ParseFloat(timeInQueue, 64)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("Invalid time in queue %q: %v", timeInQueue, err)
	}
	budget, err := strconv.ParseFloat(queueTimeout, 64)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("Invalid queue timeout %q: %v", queueTimeout, err)
	}

	if waited >= budget {
		return http.StatusRequestTimeout, fmt.Errorf("Request spent %.3fs queued, over its %.3fs budget", waited, budget)
	}
	return http.StatusOK, nil
}
