package pubmatic

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mxmCherry/openrtb/v15/openrtb2"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/adapters/adapterstest"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/usersync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSyncURL = "https://ads.pubmatic.com/AdServer/js/showad.js#PIX&kdntuid=1&p={{.PublisherID}}"

func newTestBidder(t *testing.T, variant Variant) *PubmaticAdapter {
	syncer, err := usersync.NewSyncer(string(variant.Bidder), testSyncURL)
	require.NoError(t, err)

	mockClock := clock.NewMock()
	mockClock.Set(time.Unix(1500000000, 0))

	bidder := NewPubmaticBidder(variant, syncer, "1.0.0")
	bidder.clock = mockClock
	return bidder
}

func TestJsonSamples(t *testing.T) {
	adapterstest.RunJSONBidderTest(t, "pubmatictest", newTestBidder(t, ClientVariant))
}

func TestJsonSamplesServer(t *testing.T) {
	adapterstest.RunJSONBidderTest(t, "pubmaticservertest", newTestBidder(t, ServerVariant))
}

func TestName(t *testing.T) {
	assert.Equal(t, "pubmatic", newTestBidder(t, ClientVariant).Name())
	assert.Equal(t, "pubmaticServer", newTestBidder(t, ServerVariant).Name())
}

func TestBuildRequestsAcceptedSlot(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)

	reqData, auction, errs := bidder.BuildRequests([]*adapters.BidRequest{
		{BidID: "bid-1", Params: json.RawMessage(`{"publisherId":"9999","adSlot":"abcd@728x90"}`)},
	}, &adapters.PageContext{PageURL: "http://www.example.com"})

	assert.Empty(t, errs)
	require.NotNil(t, reqData)
	assert.Equal(t, "POST", reqData.Method)
	assert.Equal(t, ClientVariant.Endpoint, reqData.Uri)
	assert.Equal(t, &adapters.AuctionContext{PublisherID: "9999"}, auction)

	var bidRequest openrtb2.BidRequest
	require.NoError(t, json.Unmarshal(reqData.Body, &bidRequest))
	require.Len(t, bidRequest.Imp, 1)
	assert.Equal(t, "9999", bidRequest.Site.Publisher.ID)
	assert.Equal(t, "abcd", bidRequest.Imp[0].TagID)
	assert.Equal(t, int64(728), *bidRequest.Imp[0].Banner.W)
	assert.Equal(t, int64(90), *bidRequest.Imp[0].Banner.H)
}

func TestBuildRequestsRejectedSlot(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)

	reqData, auction, errs := bidder.BuildRequests([]*adapters.BidRequest{
		{BidID: "bid-1", Params: json.RawMessage(`{"publisherId":"9999","adSlot":"abcd"}`)},
	}, &adapters.PageContext{PageURL: "http://www.example.com"})

	assert.Nil(t, reqData)
	assert.Nil(t, auction)
	if assert.Len(t, errs, 2) {
		assert.Equal(t, errortypes.InvalidAdSlotWarningCode, errortypes.ReadCode(errs[0]))
		assert.IsType(t, &errortypes.BadInput{}, errs[1])
	}
}

func TestBuildRequestsImpCountMatchesAcceptedSlots(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)

	slots := []string{"a@300x250", "b", "c@0x90", "d@728x90:1", "e@wxh", "f@160x600", "@1x1", "g@1x1:"}
	requests := make([]*adapters.BidRequest, 0, len(slots))
	for i, slot := range slots {
		params, _ := json.Marshal(map[string]string{"publisherId": "9999", "adSlot": slot})
		requests = append(requests, &adapters.BidRequest{BidID: string(rune('a' + i)), Params: params})
	}
	requests = append(requests, nil)

	reqData, _, errs := bidder.BuildRequests(requests, nil)

	require.NotNil(t, reqData)
	var bidRequest openrtb2.BidRequest
	require.NoError(t, json.Unmarshal(reqData.Body, &bidRequest))
	assert.Len(t, bidRequest.Imp, 3)
	assert.Len(t, errs, 5)
	for _, err := range errs {
		assert.True(t, errortypes.IsWarning(err))
	}
}

func TestBuildRequestsNoBids(t *testing.T) {
	bidder := newTestBidder(t, ServerVariant)

	reqData, auction, errs := bidder.BuildRequests(nil, &adapters.PageContext{})

	assert.Nil(t, reqData)
	assert.Nil(t, auction)
	assert.True(t, errortypes.ContainsFatalError(errs))
}

func TestBuildRequestsUsesClock(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)
	requests := []*adapters.BidRequest{
		{BidID: "bid-1", Params: json.RawMessage(`{"publisherId":"9999","adSlot":"abcd@728x90"}`)},
	}

	first, _, _ := bidder.BuildRequests(requests, nil)
	bidder.clock.(*clock.Mock).Add(1500 * time.Millisecond)
	second, _, _ := bidder.BuildRequests(requests, nil)

	var firstRequest, secondRequest openrtb2.BidRequest
	require.NoError(t, json.Unmarshal(first.Body, &firstRequest))
	require.NoError(t, json.Unmarshal(second.Body, &secondRequest))
	assert.Equal(t, "1500000000000", firstRequest.ID)
	assert.Equal(t, "1500000001500", secondRequest.ID)
}

func TestBuildRequestsFirstPublisherWins(t *testing.T) {
	bidder := newTestBidder(t, ServerVariant)

	reqData, auction, errs := bidder.BuildRequests([]*adapters.BidRequest{
		{BidID: "bid-1", Params: json.RawMessage(`{"publisherId":"1111","adSlot":"a@1x1","gender":"M"}`)},
		{BidID: "bid-2", TransactionID: "txn-2", Params: json.RawMessage(`{"publisherId":"2222","adSlot":"b@1x1","gender":"F"}`)},
	}, nil)

	assert.Empty(t, errs)
	assert.Equal(t, "1111", auction.PublisherID)

	var bidRequest openrtb2.BidRequest
	require.NoError(t, json.Unmarshal(reqData.Body, &bidRequest))
	assert.Equal(t, "1111", bidRequest.Site.Publisher.ID)
	assert.Equal(t, "F", bidRequest.User.Gender)
	assert.JSONEq(t, `{"dm":{"rs":1,"pubId":"1111","wp":"pbjs","wv":"prebid_prebid_1.0.0","transactionId":"txn-2","versionid":1}}`, string(bidRequest.Ext))
}

func TestBuildRequestsUnparsableParamKeepsEarlierValue(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)

	reqData, _, errs := bidder.BuildRequests([]*adapters.BidRequest{
		{BidID: "bid-1", Params: json.RawMessage(`{"publisherId":"1111","adSlot":"a@1x1","yob":"1985","lat":"40.7"}`)},
		{BidID: "bid-2", Params: json.RawMessage(`{"publisherId":"1111","adSlot":"b@1x1","yob":"unknown","lat":"north"}`)},
	}, nil)

	assert.Empty(t, errs)
	var bidRequest openrtb2.BidRequest
	require.NoError(t, json.Unmarshal(reqData.Body, &bidRequest))
	require.NotNil(t, bidRequest.User)
	assert.Equal(t, int64(1985), bidRequest.User.Yob)
	require.NotNil(t, bidRequest.User.Geo)
	assert.Equal(t, 40.7, bidRequest.User.Geo.Lat)
}

func TestInterpretResponse(t *testing.T) {
	page := &adapters.PageContext{PageURL: "http://www.example.com/page"}

	testCases := []struct {
		description   string
		givenResponse *adapters.ResponseData
		expectedBids  []*adapters.BidResult
		expectedError bool
	}{
		{
			description:   "Nil Response",
			givenResponse: nil,
			expectedBids:  []*adapters.BidResult{},
		},
		{
			description:   "No Content",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusNoContent},
			expectedBids:  []*adapters.BidResult{},
		},
		{
			description:   "Bad Request",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusBadRequest, Body: []byte(`{}`)},
			expectedBids:  []*adapters.BidResult{},
			expectedError: true,
		},
		{
			description:   "Missing Seatbid",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(`{"id":"1"}`)},
			expectedBids:  []*adapters.BidResult{},
		},
		{
			description:   "Missing Bid",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(`{"seatbid":[{"seat":"pubmatic"}]}`)},
			expectedBids:  []*adapters.BidResult{},
		},
		{
			description:   "Empty Seatbid",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(`{"seatbid":[]}`)},
			expectedBids:  []*adapters.BidResult{},
		},
		{
			description:   "Seatbid Not An Array",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(`{"seatbid":"none"}`)},
			expectedBids:  []*adapters.BidResult{},
			expectedError: true,
		},
		{
			description:   "Bid Not An Array",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(`{"seatbid":[{"bid":{"id":"x"}}]}`)},
			expectedBids:  []*adapters.BidResult{},
			expectedError: true,
		},
		{
			description: "Rounded Prices",
			givenResponse: &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(`{"seatbid":[{"bid":[
				{"id":"1","impid":"a","price":0.125,"w":300,"h":250},
				{"id":"2","impid":"b","price":"7.999","crid":"c2","dealid":"d2","adm":"<b>ad</b>"},
				{"id":"3","impid":"c"},
				{"id":"4","impid":"d","price":1.625},
				{"id":"5","impid":"e","price":"2.375"},
				{"id":"6","impid":"f","price":"3.5USD"}
			]}]}`)},
			expectedBids: []*adapters.BidResult{
				{RequestID: "a", CPM: "0.13", Width: 300, Height: 250, CreativeID: "1", Currency: "USD", TTL: 300, Referrer: "http://www.example.com/page"},
				{RequestID: "b", CPM: "8.00", CreativeID: "c2", DealID: "d2", Currency: "USD", TTL: 300, Referrer: "http://www.example.com/page", Ad: "<b>ad</b>"},
				{RequestID: "c", CPM: "0.00", CreativeID: "3", Currency: "USD", TTL: 300, Referrer: "http://www.example.com/page"},
				{RequestID: "d", CPM: "1.63", CreativeID: "4", Currency: "USD", TTL: 300, Referrer: "http://www.example.com/page"},
				{RequestID: "e", CPM: "2.38", CreativeID: "5", Currency: "USD", TTL: 300, Referrer: "http://www.example.com/page"},
				{RequestID: "f", CPM: "3.50", CreativeID: "6", Currency: "USD", TTL: 300, Referrer: "http://www.example.com/page"},
			},
		},
	}

	bidder := newTestBidder(t, ClientVariant)
	for _, test := range testCases {
		bids, errs := bidder.InterpretResponse(test.givenResponse, page)

		assert.Equal(t, test.expectedBids, bids, test.description+":bids")
		if test.expectedError {
			if assert.Len(t, errs, 1, test.description+":errs") {
				assert.IsType(t, &errortypes.BadServerResponse{}, errs[0], test.description+":errs")
			}
		} else {
			assert.Empty(t, errs, test.description+":errs")
		}
	}
}

func TestInterpretResponseNetRevenue(t *testing.T) {
	body := []byte(`{"seatbid":[{"bid":[{"id":"1","impid":"a","price":1}]}]}`)

	clientBids, _ := newTestBidder(t, ClientVariant).InterpretResponse(&adapters.ResponseData{StatusCode: http.StatusOK, Body: body}, nil)
	serverBids, _ := newTestBidder(t, ServerVariant).InterpretResponse(&adapters.ResponseData{StatusCode: http.StatusOK, Body: body}, nil)

	require.Len(t, clientBids, 1)
	require.Len(t, serverBids, 1)
	assert.False(t, clientBids[0].NetRevenue)
	assert.True(t, serverBids[0].NetRevenue)
	assert.Equal(t, "", clientBids[0].Referrer)
}

func TestGetUserSyncs(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)

	testCases := []struct {
		description     string
		givenOptions    adapters.SyncOptions
		givenAuction    *adapters.AuctionContext
		expectedSyncs   []usersync.Sync
		expectedWarning bool
	}{
		{
			description:   "Publisher Seen",
			givenOptions:  adapters.SyncOptions{IframeEnabled: true},
			givenAuction:  &adapters.AuctionContext{PublisherID: "9999"},
			expectedSyncs: []usersync.Sync{{Type: usersync.SyncTypeIFrame, URL: "https://ads.pubmatic.com/AdServer/js/showad.js#PIX&kdntuid=1&p=9999"}},
		},
		{
			description:   "No Auction Yet",
			givenOptions:  adapters.SyncOptions{IframeEnabled: true},
			givenAuction:  nil,
			expectedSyncs: []usersync.Sync{{Type: usersync.SyncTypeIFrame, URL: "https://ads.pubmatic.com/AdServer/js/showad.js#PIX&kdntuid=1&p=0"}},
		},
		{
			description:     "Iframe Disabled",
			givenOptions:    adapters.SyncOptions{IframeEnabled: false},
			givenAuction:    &adapters.AuctionContext{PublisherID: "9999"},
			expectedSyncs:   []usersync.Sync{},
			expectedWarning: true,
		},
	}

	for _, test := range testCases {
		syncs, errs := bidder.GetUserSyncs(test.givenOptions, test.givenAuction)

		assert.Equal(t, test.expectedSyncs, syncs, test.description+":syncs")
		if test.expectedWarning {
			if assert.Len(t, errs, 1, test.description+":errs") {
				assert.True(t, errortypes.IsWarning(errs[0]), test.description+":severity")
				assert.Equal(t, errortypes.IframeSyncDisabledWarningCode, errortypes.ReadCode(errs[0]), test.description+":code")
			}
		} else {
			assert.Empty(t, errs, test.description+":errs")
		}
	}
}

func TestBuildThenSync(t *testing.T) {
	bidder := newTestBidder(t, ClientVariant)

	_, auction, _ := bidder.BuildRequests([]*adapters.BidRequest{
		{BidID: "bid-1", Params: json.RawMessage(`{"publisherId":"9999","adSlot":"abcd@728x90"}`)},
	}, nil)
	syncs, errs := bidder.GetUserSyncs(adapters.SyncOptions{IframeEnabled: true}, auction)

	assert.Empty(t, errs)
	if assert.Len(t, syncs, 1) {
		assert.Equal(t, usersync.SyncTypeIFrame, syncs[0].Type)
		assert.Regexp(t, "9999$", syncs[0].URL)
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "www.example.com", domainOf("http://www.example.com/a/b?c=d"))
	assert.Equal(t, "example.com", domainOf("https://example.com:8443/"))
	assert.Equal(t, "example.com", domainOf("example.com/page"))
	assert.Equal(t, "cdn.example.com", domainOf("//cdn.example.com/x"))
	assert.Equal(t, "", domainOf(""))
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en-US", normalizeLanguage("en-us"))
	assert.Equal(t, "fr", normalizeLanguage(" fr "))
	assert.Equal(t, "", normalizeLanguage(""))
	assert.Equal(t, "not a tag", normalizeLanguage("not a tag"))
}

func TestVariantFor(t *testing.T) {
	variant, ok := VariantFor("pubmatic")
	assert.True(t, ok)
	assert.Equal(t, ClientVariant, variant)

	variant, ok = VariantFor("pubmaticServer")
	assert.True(t, ok)
	assert.Equal(t, ServerVariant, variant)

	_, ok = VariantFor("appnexus")
	assert.False(t, ok)
}
