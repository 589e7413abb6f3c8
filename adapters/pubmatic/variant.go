package pubmatic

import "github.com/prebid/openbid/openrtb_ext"

// ExtensionShape selects how the request level ext is filled.
type ExtensionShape int

const (
	// ExtensionWrapper fills bidrequest.ext.wrapper.
	ExtensionWrapper ExtensionShape = iota
	// ExtensionDM fills bidrequest.ext.dm.
	ExtensionDM
)

// ImpressionShape selects how much of a slot is described in an impression.
type ImpressionShape int

const (
	// ImpressionSlot tags the impression with the ad unit parsed from adSlot.
	ImpressionSlot ImpressionShape = iota
	// ImpressionDiv tags the impression with the div id and lists every size of the bid.
	ImpressionDiv
)

// Variant holds everything that differs between the client and the server path of the endpoint.
type Variant struct {
	Bidder      openrtb_ext.BidderName
	Endpoint    string
	AuctionType int64
	NetRevenue  bool
	Extension   ExtensionShape
	Impression  ImpressionShape
}

var (
	ClientVariant = Variant{
		Bidder:      openrtb_ext.BidderPubmatic,
		Endpoint:    "https://hbopenbid.pubmatic.com/translator?source=prebid-client",
		AuctionType: 1,
		NetRevenue:  false,
		Extension:   ExtensionWrapper,
		Impression:  ImpressionSlot,
	}

	ServerVariant = Variant{
		Bidder:      openrtb_ext.BidderPubmaticServer,
		Endpoint:    "https://hb.pubmatic.com/openrtb/241/?",
		AuctionType: 2,
		NetRevenue:  true,
		Extension:   ExtensionDM,
		Impression:  ImpressionDiv,
	}
)

// VariantFor returns the default Variant of a bidder.
func VariantFor(bidder openrtb_ext.BidderName) (Variant, bool) {
	switch bidder {
	case openrtb_ext.BidderPubmatic:
		return ClientVariant, true
	case openrtb_ext.BidderPubmaticServer:
		return ServerVariant, true
	}
	return Variant{}, false
}
