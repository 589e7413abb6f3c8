package openbid

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/pbsmetrics"
)

// GetUserSyncs answers GET /openbid/:bidder/usersync with the syncs the device should run once
// its auction is over. The auction query parameter picks a stored context; without it the
// bidder's latest context is used.
func (e *Endpoints) GetUserSyncs(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bidderName, bidder, ok := e.lookupBidder(w, params)
	if !ok {
		return
	}

	labels := newLabels(pbsmetrics.ReqTypeUserSync, r)
	labels.Adapter = bidderName
	defer e.recordRequest(&labels, time.Now())

	query := r.URL.Query()
	options := adapters.SyncOptions{IframeEnabled: isTruthy(query.Get("iframe"))}
	auction, _ := e.syncContexts.Load(bidderName, query.Get("auction"))

	syncs, errs := bidder.GetUserSyncs(options, auction)

	userLabels := pbsmetrics.UserLabels{Action: pbsmetrics.RequestActionSync, Bidder: bidderName}
	switch {
	case !options.IframeEnabled:
		userLabels.Action = pbsmetrics.RequestActionDisabled
	case errortypes.ContainsFatalError(errs):
		userLabels.Action = pbsmetrics.RequestActionErr
		labels.RequestStatus = pbsmetrics.RequestStatusErr
	}
	e.metricsEngine.RecordUserSync(userLabels)

	writeJSON(w, http.StatusOK, syncsResponse{
		Syncs:  syncs,
		Errors: describeErrors(errs),
	})
}
