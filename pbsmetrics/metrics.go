package pbsmetrics

import (
	"time"

	"github.com/prebid/openbid/openrtb_ext"
)

// Labels defines the labels that can be attached to the endpoint metrics.
type Labels struct {
	RType         RequestType
	Adapter       openrtb_ext.BidderName
	Browser       Browser
	RequestStatus RequestStatus
}

// AdapterLabels defines the labels that can be attached to the metrics of calls made to an auction endpoint.
type AdapterLabels struct {
	Adapter       openrtb_ext.BidderName
	Browser       Browser
	AdapterBids   AdapterBid
	AdapterErrors map[AdapterError]struct{}
}

// Label typecasting. Se below the type definitions for possible values

// RequestType : Request type enumeration
type RequestType string

// Browser type enumeration
type Browser string

// RequestStatus : The request return status
type RequestStatus string

// AdapterBid : Whether or not the adapter returned bids
type AdapterBid string

// AdapterError : Errors which may have occurred during the adapter's execution
type AdapterError string

// RejectReason : Why a candidate bid did not become an impression
type RejectReason string

// The request types (endpoints)
const (
	ReqTypeBuild     RequestType = "requests"
	ReqTypeInterpret RequestType = "bids"
	ReqTypeUserSync  RequestType = "usersync"
	ReqTypeAuction   RequestType = "auction"
)

func RequestTypes() []RequestType {
	return []RequestType{
		ReqTypeBuild,
		ReqTypeInterpret,
		ReqTypeUserSync,
		ReqTypeAuction,
	}
}

// Browser flag; at this point we only care about identifying Safari
const (
	BrowserSafari Browser = "safari"
	BrowserOther  Browser = "other"
)

func BrowserTypes() []Browser {
	return []Browser{
		BrowserSafari,
		BrowserOther,
	}
}

// Request/return status
const (
	RequestStatusOK         RequestStatus = "ok"
	RequestStatusNoContent  RequestStatus = "nocontent"
	RequestStatusBadInput   RequestStatus = "badinput"
	RequestStatusErr        RequestStatus = "err"
	RequestStatusNetworkErr RequestStatus = "networkerr"
)

func RequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusOK,
		RequestStatusNoContent,
		RequestStatusBadInput,
		RequestStatusErr,
		RequestStatusNetworkErr,
	}
}

// Adapter bid repsonse status.
const (
	AdapterBidPresent AdapterBid = "bid"
	AdapterBidNone    AdapterBid = "nobid"
)

func AdapterBids() []AdapterBid {
	return []AdapterBid{
		AdapterBidPresent,
		AdapterBidNone,
	}
}

// Adapter execution status
const (
	AdapterErrorBadInput          AdapterError = "badinput"
	AdapterErrorBadServerResponse AdapterError = "badserverresponse"
	AdapterErrorTimeout           AdapterError = "timeout"
	AdapterErrorFailedToRequest   AdapterError = "failedtorequestbid"
	AdapterErrorUnknown           AdapterError = "unknown_error"
)

func AdapterErrors() []AdapterError {
	return []AdapterError{
		AdapterErrorBadInput,
		AdapterErrorBadServerResponse,
		AdapterErrorTimeout,
		AdapterErrorFailedToRequest,
		AdapterErrorUnknown,
	}
}

// Candidate rejection reasons
const (
	RejectReasonAdSlot      RejectReason = "adslot"
	RejectReasonPublisherID RejectReason = "publisher"
	RejectReasonParams      RejectReason = "params"
)

func RejectReasons() []RejectReason {
	return []RejectReason{
		RejectReasonAdSlot,
		RejectReasonPublisherID,
		RejectReasonParams,
	}
}

// UserLabels : Labels for the /usersync endpoint
type UserLabels struct {
	Action RequestAction
	Bidder openrtb_ext.BidderName
}

// RequestAction : The usersync request result
type RequestAction string

// /usersync action labels
const (
	RequestActionSync     RequestAction = "sync"
	RequestActionDisabled RequestAction = "disabled"
	RequestActionErr      RequestAction = "err"
)

func RequestActions() []RequestAction {
	return []RequestAction{
		RequestActionSync,
		RequestActionDisabled,
		RequestActionErr,
	}
}

// MetricsEngine is a generic interface to record metrics into the desired backend.
// The request metrics fire once per call to an openbid endpoint. The adapter metrics fire once
// per auction call made to a bidder endpoint through /auction.
type MetricsEngine interface {
	RecordConnectionAccept(success bool)
	RecordConnectionClose(success bool)
	RecordRequest(labels Labels)
	RecordImps(labels Labels, numImps int)
	RecordRequestTime(labels Labels, length time.Duration)
	RecordRejectedSlot(adapter openrtb_ext.BidderName, reason RejectReason)
	RecordAdapterRequest(labels AdapterLabels)
	RecordAdapterBidsReceived(labels AdapterLabels, bids int64)
	RecordAdapterPrice(labels AdapterLabels, cpm float64)
	RecordAdapterTime(labels AdapterLabels, length time.Duration)
	RecordUserSync(userLabels UserLabels)
}
