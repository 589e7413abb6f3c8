package openbid

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/mssola/user_agent"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/config"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/openrtb_ext"
	"github.com/prebid/openbid/pbsmetrics"
	"github.com/prebid/openbid/usersync"
	"golang.org/x/text/language"
)

// Endpoints serves the openbid adapters over HTTP. Each handler reads the bidder from the
// ":bidder" route parameter.
type Endpoints struct {
	bidders         map[openrtb_ext.BidderName]adapters.Bidder
	paramsValidator openrtb_ext.BidderParamValidator
	syncContexts    *SyncContextStore
	httpAdapter     *adapters.HTTPAdapter
	timeouts        config.AuctionTimeouts
	maxRequestSize  int64
	metricsEngine   pbsmetrics.MetricsEngine
}

// NewEndpoints wires the handlers. Every argument is required.
func NewEndpoints(
	cfg *config.Configuration,
	bidders map[openrtb_ext.BidderName]adapters.Bidder,
	paramsValidator openrtb_ext.BidderParamValidator,
	syncContexts *SyncContextStore,
	httpAdapter *adapters.HTTPAdapter,
	metricsEngine pbsmetrics.MetricsEngine) (*Endpoints, error) {

	if cfg == nil || bidders == nil || paramsValidator == nil || syncContexts == nil || httpAdapter == nil || metricsEngine == nil {
		return nil, errors.New("NewEndpoints requires non-nil arguments.")
	}

	return &Endpoints{
		bidders:         bidders,
		paramsValidator: paramsValidator,
		syncContexts:    syncContexts,
		httpAdapter:     httpAdapter,
		timeouts:        cfg.AuctionTimeouts,
		maxRequestSize:  cfg.MaxRequestSize,
		metricsEngine:   metricsEngine,
	}, nil
}

// buildRequest is the body accepted by /requests and /auction.
type buildRequest struct {
	Bids []*adapters.BidRequest `json:"bids"`
	Page *adapters.PageContext  `json:"page"`
}

type requestDescriptor struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    json.RawMessage   `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

type errorDescriptor struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"`
}

type buildResponse struct {
	Request   *requestDescriptor `json:"request"`
	AuctionID string             `json:"auctionId,omitempty"`
	Errors    []errorDescriptor  `json:"errors,omitempty"`
}

type bidsResponse struct {
	Bids      []*adapters.BidResult `json:"bids"`
	AuctionID string                `json:"auctionId,omitempty"`
	Errors    []errorDescriptor     `json:"errors,omitempty"`
}

type syncsResponse struct {
	Syncs  []usersync.Sync   `json:"syncs"`
	Errors []errorDescriptor `json:"errors,omitempty"`
}

// lookupBidder resolves the ":bidder" route parameter. It writes a 404 when the bidder is unknown or disabled.
func (e *Endpoints) lookupBidder(w http.ResponseWriter, params httprouter.Params) (openrtb_ext.BidderName, adapters.Bidder, bool) {
	name, ok := openrtb_ext.GetBidderName(params.ByName("bidder"))
	if ok {
		if bidder, ok := e.bidders[name]; ok {
			return name, bidder, true
		}
	}
	http.Error(w, fmt.Sprintf("unknown bidder: %s", params.ByName("bidder")), http.StatusNotFound)
	return name, nil, false
}

func (e *Endpoints) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body := r.Body
	if e.maxRequestSize > 0 {
		body = http.MaxBytesReader(w, r.Body, e.maxRequestSize)
	}
	return ioutil.ReadAll(body)
}

// parseBuildRequest decodes the body, drops bids whose params fail the bidder's JSON schema and
// fills the page context from the HTTP headers where the caller left it empty.
func (e *Endpoints) parseBuildRequest(w http.ResponseWriter, r *http.Request, bidderName openrtb_ext.BidderName) (*buildRequest, []error, error) {
	body, err := e.readBody(w, r)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to read request body: %v", err)
	}

	req := &buildRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, nil, fmt.Errorf("Failed to parse request body: %v", err)
	}
	if req.Page == nil {
		req.Page = &adapters.PageContext{}
	}
	fillPageFromHeaders(req.Page, r)

	var errs []error
	valid := make([]*adapters.BidRequest, 0, len(req.Bids))
	for _, bid := range req.Bids {
		if bid == nil {
			continue
		}
		if err := e.paramsValidator.Validate(bidderName, bid.Params); err != nil {
			errs = append(errs, &errortypes.Warning{
				Message:     fmt.Sprintf("bid %s: params do not match the %s schema: %v", bid.BidID, bidderName, err),
				WarningCode: errortypes.InvalidParamsWarningCode,
			})
			e.metricsEngine.RecordRejectedSlot(bidderName, pbsmetrics.RejectReasonParams)
			continue
		}
		valid = append(valid, bid)
	}
	req.Bids = valid
	return req, errs, nil
}

func fillPageFromHeaders(page *adapters.PageContext, r *http.Request) {
	if page.UserAgent == "" {
		page.UserAgent = r.UserAgent()
	}
	if page.PageURL == "" {
		page.PageURL = r.Referer()
	}
	if !page.DoNotTrack && r.Header.Get("DNT") == "1" {
		page.DoNotTrack = true
	}
	if page.Language == "" {
		if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
			page.Language = tags[0].String()
		}
	}
}

// recordRejections counts the candidates the adapter skipped.
func (e *Endpoints) recordRejections(bidderName openrtb_ext.BidderName, errs []error) {
	for _, err := range errs {
		switch errortypes.ReadCode(err) {
		case errortypes.InvalidAdSlotWarningCode:
			e.metricsEngine.RecordRejectedSlot(bidderName, pbsmetrics.RejectReasonAdSlot)
		case errortypes.MissingPublisherIDWarningCode:
			e.metricsEngine.RecordRejectedSlot(bidderName, pbsmetrics.RejectReasonPublisherID)
		}
	}
}

func newRequestDescriptor(reqData *adapters.RequestData) *requestDescriptor {
	headers := make(map[string]string, len(reqData.Headers))
	for key := range reqData.Headers {
		headers[key] = reqData.Headers.Get(key)
	}
	return &requestDescriptor{
		Method:  reqData.Method,
		URL:     reqData.Uri,
		Body:    reqData.Body,
		Headers: headers,
	}
}

func describeErrors(errs []error) []errorDescriptor {
	if len(errs) == 0 {
		return nil
	}
	descriptors := make([]errorDescriptor, 0, len(errs))
	for _, err := range errs {
		descriptors = append(descriptors, errorDescriptor{
			Code:    errortypes.ReadCode(err),
			Message: err.Error(),
			Warning: errortypes.IsWarning(err),
		})
	}
	return descriptors
}

func newLabels(rType pbsmetrics.RequestType, r *http.Request) pbsmetrics.Labels {
	labels := pbsmetrics.Labels{
		RType:         rType,
		Browser:       pbsmetrics.BrowserOther,
		RequestStatus: pbsmetrics.RequestStatusOK,
	}
	if ua := user_agent.New(r.Header.Get("User-Agent")); ua != nil {
		name, _ := ua.Browser()
		if name == "Safari" {
			labels.Browser = pbsmetrics.BrowserSafari
		}
	}
	return labels
}

// recordRequest is deferred by every handler with the time it started.
func (e *Endpoints) recordRequest(labels *pbsmetrics.Labels, start time.Time) {
	e.metricsEngine.RecordRequest(*labels)
	e.metricsEngine.RecordRequestTime(*labels, time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	body, err := json.Marshal(value)
	if err != nil {
		glog.Errorf("Failed to marshal openbid response: %v", err)
		http.Error(w, fmt.Sprintf("Failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
