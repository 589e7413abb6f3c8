package openbid

import (
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/openrtb_ext"
	"github.com/prebid/openbid/pbsmetrics"
)

// builtAuction is what BuildRequests produced for one HTTP call.
type builtAuction struct {
	request   *adapters.RequestData
	page      *adapters.PageContext
	auctionID string
	errs      []error
}

// BuildRequests answers POST /openbid/:bidder/requests with the request the device should send.
func (e *Endpoints) BuildRequests(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bidderName, bidder, ok := e.lookupBidder(w, params)
	if !ok {
		return
	}

	labels := newLabels(pbsmetrics.ReqTypeBuild, r)
	labels.Adapter = bidderName
	defer e.recordRequest(&labels, time.Now())

	built, ok := e.build(w, r, bidderName, bidder, &labels)
	if !ok {
		return
	}
	if built.request == nil {
		labels.RequestStatus = pbsmetrics.RequestStatusNoContent
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, buildResponse{
		Request:   newRequestDescriptor(built.request),
		AuctionID: built.auctionID,
		Errors:    describeErrors(built.errs),
	})
}

// build decodes the body and runs the bidder's BuildRequests. It answers 400 itself when the body
// cannot be read, in which case ok is false.
func (e *Endpoints) build(w http.ResponseWriter, r *http.Request, bidderName openrtb_ext.BidderName, bidder adapters.Bidder, labels *pbsmetrics.Labels) (built builtAuction, ok bool) {
	req, errs, err := e.parseBuildRequest(w, r, bidderName)
	if err != nil {
		labels.RequestStatus = pbsmetrics.RequestStatusBadInput
		writeJSON(w, http.StatusBadRequest, buildResponse{
			Errors: describeErrors([]error{&errortypes.BadInput{Message: err.Error()}}),
		})
		return built, false
	}

	reqData, auction, buildErrs := bidder.BuildRequests(req.Bids, req.Page)
	e.recordRejections(bidderName, buildErrs)
	built.errs = append(errs, buildErrs...)
	built.page = req.Page
	if reqData == nil {
		return built, true
	}

	built.request = reqData
	e.metricsEngine.RecordImps(*labels, countImps(reqData.Body))
	if auction != nil {
		auctionID, err := e.syncContexts.Save(bidderName, auction)
		if err != nil {
			glog.Errorf("Failed to save the %s auction context: %v", bidderName, err)
		}
		built.auctionID = auctionID
	}
	return built, true
}

func countImps(body []byte) int {
	count := 0
	jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		count++
	}, "imp")
	return count
}
