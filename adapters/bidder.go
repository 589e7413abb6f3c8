package adapters

import (
	"encoding/json"
	"net/http"

	"github.com/prebid/openbid/usersync"
)

// Bidder translates a batch of slot configurations into a single auction call, and the auction
// reply back into bids. It never performs network calls itself: the host executes the RequestData
// and hands the ResponseData back.
type Bidder interface {
	// BuildRequests makes the HTTP request which should be made to fetch bids.
	//
	// A nil RequestData means there is nothing to send. The errors should contain a list of
	// errors which explain why individual slots were skipped. For example: the slot spec
	// was malformed or the publisher id was missing.
	//
	// The AuctionContext carries state which the host must hand back to GetUserSyncs.
	BuildRequests(requests []*BidRequest, page *PageContext) (*RequestData, *AuctionContext, []error)

	// InterpretResponse unpacks the server's response into bids.
	//
	// The bids can be empty (for no bids), but will not contain nil elements.
	InterpretResponse(response *ResponseData, page *PageContext) ([]*BidResult, []error)

	// GetUserSyncs returns the user syncs the device should perform after the auction.
	GetUserSyncs(options SyncOptions, auction *AuctionContext) ([]usersync.Sync, []error)
}

// BidRequest is one candidate slot handed over by the host.
type BidRequest struct {
	BidID         string          `json:"bidId"`
	TransactionID string          `json:"transactionId,omitempty"`
	Sizes         [][]int64       `json:"sizes,omitempty"`
	Params        json.RawMessage `json:"params"`
}

// PageContext holds the ambient page and device values the host observed for the auction.
type PageContext struct {
	PageURL      string `json:"pageUrl"`
	Referrer     string `json:"referrer,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	ScreenWidth  int64  `json:"screenWidth,omitempty"`
	ScreenHeight int64  `json:"screenHeight,omitempty"`
	DoNotTrack   bool   `json:"doNotTrack,omitempty"`
	Language     string `json:"language,omitempty"`
	Secure       bool   `json:"secure,omitempty"`
	InIframe     bool   `json:"inIframe,omitempty"`
}

// AuctionContext is the state produced by BuildRequests which later calls depend on.
type AuctionContext struct {
	PublisherID string `json:"publisherId"`
}

// SyncOptions are the user sync capabilities the host allows.
type SyncOptions struct {
	IframeEnabled bool `json:"iframeEnabled"`
}

// BidResult is a normalized bid ready to be handed to the host.
type BidResult struct {
	RequestID  string `json:"requestId"`
	CPM        string `json:"cpm"`
	Width      int64  `json:"width"`
	Height     int64  `json:"height"`
	CreativeID string `json:"creativeId"`
	DealID     string `json:"dealId,omitempty"`
	Currency   string `json:"currency"`
	NetRevenue bool   `json:"netRevenue"`
	TTL        int    `json:"ttl"`
	Referrer   string `json:"referrer"`
	Ad         string `json:"ad"`
}

// ResponseData packages together information from the server's http.Response.
//
// This exists so that hosts which perform the call themselves can hand the reply back uniformly.
type ResponseData struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// RequestData packages together the fields needed to make an http.Request.
type RequestData struct {
	Method  string
	Uri     string
	Body    []byte
	Headers http.Header
}
