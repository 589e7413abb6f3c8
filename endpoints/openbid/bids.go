package openbid

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/pbsmetrics"
)

// interpretRequest is the body accepted by /bids: the reply the device got from the auction server.
type interpretRequest struct {
	StatusCode int                   `json:"statusCode"`
	Body       json.RawMessage       `json:"body"`
	Page       *adapters.PageContext `json:"page"`
}

// InterpretResponse answers POST /openbid/:bidder/bids with the bids found in an auction reply.
func (e *Endpoints) InterpretResponse(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bidderName, bidder, ok := e.lookupBidder(w, params)
	if !ok {
		return
	}

	labels := newLabels(pbsmetrics.ReqTypeInterpret, r)
	labels.Adapter = bidderName
	defer e.recordRequest(&labels, time.Now())

	body, err := e.readBody(w, r)
	req := &interpretRequest{}
	if err == nil {
		err = json.Unmarshal(body, req)
	}
	if err != nil {
		labels.RequestStatus = pbsmetrics.RequestStatusBadInput
		writeJSON(w, http.StatusBadRequest, bidsResponse{
			Bids:   []*adapters.BidResult{},
			Errors: describeErrors([]error{&errortypes.BadInput{Message: fmt.Sprintf("Failed to parse request body: %v", err)}}),
		})
		return
	}
	if req.Page == nil {
		req.Page = &adapters.PageContext{}
	}
	fillPageFromHeaders(req.Page, r)

	bids, errs := bidder.InterpretResponse(&adapters.ResponseData{
		StatusCode: req.StatusCode,
		Body:       unquoteBody(req.Body),
	}, req.Page)
	if errortypes.ContainsFatalError(errs) {
		labels.RequestStatus = pbsmetrics.RequestStatusErr
	}

	writeJSON(w, http.StatusOK, bidsResponse{
		Bids:   bids,
		Errors: describeErrors(errs),
	})
}

// unquoteBody accepts the auction reply either as a JSON document or as the raw text the device
// received, encoded as a JSON string.
func unquoteBody(body json.RawMessage) []byte {
	if len(body) == 0 || body[0] != '"' {
		return body
	}
	var text string
	if err := json.Unmarshal(body, &text); err != nil {
		return body
	}
	return []byte(text)
}
