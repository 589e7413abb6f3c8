package openbid

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/pbsmetrics"
)

// Auction answers POST /openbid/:bidder/auction. It builds the request, sends it to the auction
// server and interprets the reply in one round trip.
func (e *Endpoints) Auction(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bidderName, bidder, ok := e.lookupBidder(w, params)
	if !ok {
		return
	}

	labels := newLabels(pbsmetrics.ReqTypeAuction, r)
	labels.Adapter = bidderName
	defer e.recordRequest(&labels, time.Now())

	timeout, err := e.auctionTimeout(r)
	if err != nil {
		labels.RequestStatus = pbsmetrics.RequestStatusBadInput
		writeJSON(w, http.StatusBadRequest, bidsResponse{
			Bids:   []*adapters.BidResult{},
			Errors: describeErrors([]error{err}),
		})
		return
	}

	built, ok := e.build(w, r, bidderName, bidder, &labels)
	if !ok {
		return
	}
	if built.request == nil {
		labels.RequestStatus = pbsmetrics.RequestStatusNoContent
		writeJSON(w, http.StatusOK, bidsResponse{
			Bids:   []*adapters.BidResult{},
			Errors: describeErrors(built.errs),
		})
		return
	}

	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	adapterLabels := pbsmetrics.AdapterLabels{
		Adapter:     bidderName,
		Browser:     labels.Browser,
		AdapterBids: pbsmetrics.AdapterBidNone,
	}
	start := time.Now()
	response, err := e.httpAdapter.Do(ctx, built.request)
	e.metricsEngine.RecordAdapterTime(adapterLabels, time.Since(start))

	bids := []*adapters.BidResult{}
	errs := built.errs
	if err != nil {
		labels.RequestStatus = pbsmetrics.RequestStatusNetworkErr
		adapterLabels.AdapterErrors = map[pbsmetrics.AdapterError]struct{}{
			adapterErrorOf(ctx, err): {},
		}
		errs = append(errs, err)
	} else {
		var interpretErrs []error
		bids, interpretErrs = bidder.InterpretResponse(response, built.page)
		errs = append(errs, interpretErrs...)
		adapterLabels.AdapterErrors = adapterErrorsOf(interpretErrs)
		if errortypes.ContainsFatalError(interpretErrs) {
			labels.RequestStatus = pbsmetrics.RequestStatusErr
		}
	}

	if len(bids) > 0 {
		adapterLabels.AdapterBids = pbsmetrics.AdapterBidPresent
	}
	e.metricsEngine.RecordAdapterRequest(adapterLabels)
	e.metricsEngine.RecordAdapterBidsReceived(adapterLabels, int64(len(bids)))
	for _, bid := range bids {
		if cpm, err := strconv.ParseFloat(bid.CPM, 64); err == nil {
			e.metricsEngine.RecordAdapterPrice(adapterLabels, cpm)
		}
	}

	writeJSON(w, http.StatusOK, bidsResponse{
		Bids:      bids,
		AuctionID: built.auctionID,
		Errors:    describeErrors(errs),
	})
}

// auctionTimeout reads the tmax query parameter, in milliseconds, and bounds it by the configured limits.
func (e *Endpoints) auctionTimeout(r *http.Request) (time.Duration, error) {
	requested := time.Duration(0)
	if tmax := r.URL.Query().Get("tmax"); tmax != "" {
		millis, err := strconv.ParseUint(tmax, 10, 64)
		if err != nil {
			return 0, &errortypes.BadInput{Message: fmt.Sprintf("tmax must be a number of milliseconds. Got %s", tmax)}
		}
		requested = time.Duration(millis) * time.Millisecond
	}
	return e.timeouts.LimitAuctionTimeout(requested), nil
}

func adapterErrorOf(ctx context.Context, err error) pbsmetrics.AdapterError {
	if ctx.Err() == context.DeadlineExceeded {
		return pbsmetrics.AdapterErrorTimeout
	}
	switch err.(type) {
	case *errortypes.Timeout:
		return pbsmetrics.AdapterErrorTimeout
	case *errortypes.FailedToRequestBids:
		return pbsmetrics.AdapterErrorFailedToRequest
	default:
		return pbsmetrics.AdapterErrorUnknown
	}
}

func adapterErrorsOf(errs []error) map[pbsmetrics.AdapterError]struct{} {
	if len(errs) == 0 {
		return nil
	}
	found := make(map[pbsmetrics.AdapterError]struct{}, len(errs))
	for _, err := range errs {
		switch err.(type) {
		case *errortypes.BadServerResponse:
			found[pbsmetrics.AdapterErrorBadServerResponse] = struct{}{}
		case *errortypes.BadInput:
			found[pbsmetrics.AdapterErrorBadInput] = struct{}{}
		default:
			found[pbsmetrics.AdapterErrorUnknown] = struct{}{}
		}
	}
	return found
}
