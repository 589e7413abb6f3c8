package openrtb_ext

// ExtImpPubmatic defines the contract for bidrequest.imp[i].ext sent to the OpenBid endpoint.
// The client path only fills PmZoneID; the server path also names the div, ad unit and slot index.
type ExtImpPubmatic struct {
	PmZoneID  string `json:"pmZoneId,omitempty"`
	Div       string `json:"div,omitempty"`
	AdUnit    string `json:"adunit,omitempty"`
	SlotIndex string `json:"slotIndex,omitempty"`
}

// ExtSitePubmatic defines the contract for bidrequest.site.ext
type ExtSitePubmatic struct {
	KeyVal string `json:"key_val"`
}

// ExtRequestPubmatic defines the contract for bidrequest.ext. Exactly one of Wrapper and DM is set,
// depending on the adapter variant.
type ExtRequestPubmatic struct {
	Wrapper *ExtRequestPubmaticWrapper `json:"wrapper,omitempty"`
	DM      *ExtRequestPubmaticDM      `json:"dm,omitempty"`
}

// ExtRequestPubmaticWrapper defines the contract for bidrequest.ext.wrapper
type ExtRequestPubmaticWrapper struct {
	ProfileID           *int64 `json:"profile,omitempty"`
	VersionID           *int64 `json:"version,omitempty"`
	WrapperImpressionID string `json:"wiid,omitempty"`
	WrapperVersion      string `json:"wv"`
	WrapperPlatform     string `json:"wp"`
}

// ExtRequestPubmaticDM defines the contract for bidrequest.ext.dm
type ExtRequestPubmaticDM struct {
	RS                  int    `json:"rs"`
	PublisherID         string `json:"pubId"`
	WrapperPlatform     string `json:"wp"`
	WrapperVersion      string `json:"wv"`
	TransactionID       string `json:"transactionId,omitempty"`
	ProfileID           *int64 `json:"profileid,omitempty"`
	VersionID           int64  `json:"versionid"`
	WrapperImpressionID string `json:"wiid,omitempty"`
}
