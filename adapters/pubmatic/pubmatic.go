package pubmatic

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/buger/jsonparser"
	"github.com/mxmCherry/openrtb/v15/openrtb2"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/logger"
	"github.com/prebid/openbid/openrtb_ext"
	"github.com/prebid/openbid/usersync"
	"github.com/xorcare/pointer"
	"golang.org/x/text/language"
)

const (
	currency          = "USD"
	bidTTL            = 300
	wrapperPlatform   = "pbjs"
	wrapperVersionFmt = "prebid_prebid_%s"
	defaultVersionID  = 1
)

// PubmaticAdapter builds OpenBid auction calls for one Variant.
type PubmaticAdapter struct {
	variant        Variant
	syncer         usersync.Syncer
	wrapperVersion string
	clock          clock.Clock
}

// NewPubmaticBidder creates an adapter for the variant. The version is the release of the
// wrapper reported to the endpoint in the request ext.
func NewPubmaticBidder(variant Variant, syncer usersync.Syncer, version string) *PubmaticAdapter {
	return &PubmaticAdapter{
		variant:        variant,
		syncer:         syncer,
		wrapperVersion: fmt.Sprintf(wrapperVersionFmt, version),
		clock:          clock.New(),
	}
}

// Name is the bidder code of the adapter.
func (a *PubmaticAdapter) Name() string {
	return string(a.variant.Bidder)
}

func logf(msg string, args ...interface{}) {
	logger.Warnf("[PUBMATIC] "+msg, args...)
}

// auctionConfig accumulates the values shared by every impression of one request.
type auctionConfig struct {
	pageURL       string
	referrer      string
	publisherID   string
	transactionID string

	kadpageurl          string
	gender              string
	wrapperImpressionID string
	dctr                string
	yob                 *int64
	lat                 *float64
	lon                 *float64
	profileID           *int64
	versionID           *int64
}

func initAuctionConfig(page *adapters.PageContext) *auctionConfig {
	return &auctionConfig{
		pageURL:  strings.TrimSpace(page.PageURL),
		referrer: strings.TrimSpace(page.Referrer),
	}
}

// fold copies the shared params of an accepted bid. Later bids overwrite earlier values; a number
// which did not parse is absent and leaves the earlier value in place.
func (c *auctionConfig) fold(params *Params) {
	if params.Kadpageurl != "" {
		c.kadpageurl = params.Kadpageurl
	}
	if params.Gender != "" {
		c.gender = params.Gender
	}
	if params.WrapperImpressionID != "" {
		c.wrapperImpressionID = params.WrapperImpressionID
	}
	if params.Dctr != "" {
		c.dctr = params.Dctr
	}
	if params.Yob != nil {
		c.yob = params.Yob
	}
	if params.Lat != nil {
		c.lat = params.Lat
	}
	if params.Lon != nil {
		c.lon = params.Lon
	}
	if params.ProfileID != nil {
		c.profileID = params.ProfileID
	}
	if params.VersionID != nil {
		c.versionID = params.VersionID
	}
}

func (c *auctionConfig) hasDemographics() bool {
	return c.gender != "" || c.lat != nil || c.lon != nil || c.yob != nil
}

func (a *PubmaticAdapter) BuildRequests(requests []*adapters.BidRequest, page *adapters.PageContext) (*adapters.RequestData, *adapters.AuctionContext, []error) {
	if page == nil {
		page = &adapters.PageContext{}
	}

	errs := make([]error, 0, len(requests))
	conf := initAuctionConfig(page)
	imps := make([]openrtb2.Imp, 0, len(requests))

	for _, request := range requests {
		if request == nil {
			continue
		}

		params, paramErrs := NormalizeParams(request.Params)
		errs = append(errs, paramErrs...)

		publisherID := strings.TrimSpace(params.PublisherID)
		if publisherID == "" {
			logf("Bid %s skipped: publisherId is mandatory and must be a string", request.BidID)
			errs = append(errs, &errortypes.Warning{
				Message:     fmt.Sprintf("bid %s: publisherId is mandatory and must be a string", request.BidID),
				WarningCode: errortypes.MissingPublisherIDWarningCode,
			})
			continue
		}

		slot, _ := ParseSlot(params.AdSlot)
		if !slot.Acceptable() {
			logf("Skipping the non-standard adSlot '%s' in bid %s", slot.Raw, request.BidID)
			errs = append(errs, &errortypes.Warning{
				Message:     fmt.Sprintf("bid %s: skipping the non-standard adSlot '%s'", request.BidID, slot.Raw),
				WarningCode: errortypes.InvalidAdSlotWarningCode,
			})
			continue
		}

		if conf.publisherID == "" {
			conf.publisherID = publisherID
		}
		conf.fold(&params)
		conf.transactionID = request.TransactionID

		imp, err := a.makeImp(request, &params, slot, page)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		imps = append(imps, imp)
	}

	if len(imps) == 0 {
		errs = append(errs, &errortypes.BadInput{
			Message: "No valid impressions in the bid request",
		})
		return nil, nil, errs
	}

	bidRequest, err := a.makeBidRequest(conf, imps, page)
	if err != nil {
		return nil, nil, append(errs, err)
	}

	body, err := json.Marshal(bidRequest)
	if err != nil {
		return nil, nil, append(errs, &errortypes.FailedToMarshal{
			Message: err.Error(),
		})
	}

	headers := http.Header{}
	headers.Add("Content-Type", "application/json;charset=utf-8")
	headers.Add("Accept", "application/json")

	return &adapters.RequestData{
		Method:  "POST",
		Uri:     a.variant.Endpoint,
		Body:    body,
		Headers: headers,
	}, &adapters.AuctionContext{PublisherID: conf.publisherID}, errs
}

func (a *PubmaticAdapter) makeImp(request *adapters.BidRequest, params *Params, slot Slot, page *adapters.PageContext) (openrtb2.Imp, error) {
	imp := openrtb2.Imp{
		ID:     request.BidID,
		TagID:  slot.AdUnit,
		Secure: pointer.Int8(boolToInt8(page.Secure)),
		Banner: &openrtb2.Banner{
			W:        pointer.Int64(slot.Width),
			H:        pointer.Int64(slot.Height),
			TopFrame: boolToInt8(!page.InIframe),
		},
	}
	if params.Kadfloor != nil {
		imp.BidFloor = *params.Kadfloor
	}

	impExt := openrtb_ext.ExtImpPubmatic{
		PmZoneID: params.PmZoneID,
	}

	if a.variant.Impression == ImpressionDiv {
		if params.DivID != "" {
			imp.TagID = params.DivID
		}
		imp.Banner.Format = makeFormat(request.Sizes, slot)

		impExt.Div = params.DivID
		impExt.AdUnit = params.AdUnitID
		impExt.SlotIndex = slot.AdUnitIndex
		if params.AdUnitIndex != "" {
			impExt.SlotIndex = params.AdUnitIndex
		}
	}

	ext, err := json.Marshal(impExt)
	if err != nil {
		return imp, &errortypes.FailedToMarshal{
			Message: fmt.Sprintf("bid %s: %v", request.BidID, err),
		}
	}
	if string(ext) != "{}" {
		imp.Ext = ext
	}
	return imp, nil
}

func makeFormat(sizes [][]int64, slot Slot) []openrtb2.Format {
	format := make([]openrtb2.Format, 0, len(sizes))
	for _, size := range sizes {
		if len(size) != 2 {
			continue
		}
		format = append(format, openrtb2.Format{W: size[0], H: size[1]})
	}
	if len(format) == 0 {
		format = append(format, openrtb2.Format{W: slot.Width, H: slot.Height})
	}
	return format
}

func (a *PubmaticAdapter) makeBidRequest(conf *auctionConfig, imps []openrtb2.Imp, page *adapters.PageContext) (*openrtb2.BidRequest, error) {
	pageURL := strings.TrimSpace(conf.kadpageurl)
	if pageURL == "" {
		pageURL = conf.pageURL
	}

	bidRequest := &openrtb2.BidRequest{
		ID:  strconv.FormatInt(a.clock.Now().UnixNano()/int64(time.Millisecond), 10),
		AT:  a.variant.AuctionType,
		Cur: []string{currency},
		Imp: imps,
		Site: &openrtb2.Site{
			Page:   pageURL,
			Ref:    conf.referrer,
			Domain: domainOf(pageURL),
			Publisher: &openrtb2.Publisher{
				ID: conf.publisherID,
			},
		},
		Device: &openrtb2.Device{
			UA:       page.UserAgent,
			JS:       1,
			DNT:      pointer.Int8(boolToInt8(page.DoNotTrack)),
			H:        page.ScreenHeight,
			W:        page.ScreenWidth,
			Language: normalizeLanguage(page.Language),
		},
	}

	if conf.hasDemographics() {
		geo := &openrtb2.Geo{}
		if conf.lat != nil {
			geo.Lat = *conf.lat
		}
		if conf.lon != nil {
			geo.Lon = *conf.lon
		}
		bidRequest.User = &openrtb2.User{
			Gender: strings.TrimSpace(conf.gender),
			Geo:    geo,
		}
		if conf.yob != nil {
			bidRequest.User.Yob = *conf.yob
		}
		bidRequest.Device.Geo = geo
	}

	if conf.dctr != "" {
		siteExt, err := json.Marshal(openrtb_ext.ExtSitePubmatic{KeyVal: conf.dctr})
		if err != nil {
			return nil, &errortypes.FailedToMarshal{Message: err.Error()}
		}
		bidRequest.Site.Ext = siteExt
	}

	reqExt, err := json.Marshal(a.makeRequestExt(conf))
	if err != nil {
		return nil, &errortypes.FailedToMarshal{Message: err.Error()}
	}
	bidRequest.Ext = reqExt

	return bidRequest, nil
}

func (a *PubmaticAdapter) makeRequestExt(conf *auctionConfig) openrtb_ext.ExtRequestPubmatic {
	if a.variant.Extension == ExtensionDM {
		versionID := int64(defaultVersionID)
		if conf.versionID != nil {
			versionID = *conf.versionID
		}
		return openrtb_ext.ExtRequestPubmatic{
			DM: &openrtb_ext.ExtRequestPubmaticDM{
				RS:                  1,
				PublisherID:         conf.publisherID,
				WrapperPlatform:     wrapperPlatform,
				WrapperVersion:      a.wrapperVersion,
				TransactionID:       conf.transactionID,
				ProfileID:           conf.profileID,
				VersionID:           versionID,
				WrapperImpressionID: conf.wrapperImpressionID,
			},
		}
	}

	return openrtb_ext.ExtRequestPubmatic{
		Wrapper: &openrtb_ext.ExtRequestPubmaticWrapper{
			ProfileID:           conf.profileID,
			VersionID:           conf.versionID,
			WrapperImpressionID: conf.wrapperImpressionID,
			WrapperVersion:      a.wrapperVersion,
			WrapperPlatform:     wrapperPlatform,
		},
	}
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Scheme == "" && !strings.HasPrefix(pageURL, "//") {
		if u, err = url.Parse("//" + pageURL); err != nil {
			return ""
		}
	}
	return u.Hostname()
}

func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

func boolToInt8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func (a *PubmaticAdapter) InterpretResponse(response *adapters.ResponseData, page *adapters.PageContext) (bids []*adapters.BidResult, errs []error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[PUBMATIC] Recovered from a failure while reading the auction response: %v", r)
			bids = []*adapters.BidResult{}
			errs = []error{&errortypes.BadServerResponse{
				Message: fmt.Sprintf("Failed to read the auction response: %v", r),
			}}
		}
	}()

	bids = []*adapters.BidResult{}
	if response == nil || response.StatusCode == http.StatusNoContent {
		return bids, nil
	}

	if response.StatusCode != http.StatusOK {
		return bids, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("Unexpected status code: %d.", response.StatusCode),
		}}
	}

	referrer := ""
	if page != nil {
		referrer = page.PageURL
	}

	seatBid, err := firstSeatBid(response.Body)
	if err == nil {
		_, err = jsonparser.ArrayEach(seatBid, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
			if dataType != jsonparser.Object {
				return
			}
			bids = append(bids, a.makeBidResult(value, referrer))
		}, "bid")
	}

	if err != nil {
		if err == jsonparser.KeyPathNotFoundError {
			return []*adapters.BidResult{}, nil
		}
		logger.Errorf("[PUBMATIC] Failed to read the auction response: %v", err)
		return []*adapters.BidResult{}, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("Failed to read the auction response: %v", err),
		}}
	}

	return bids, nil
}

// firstSeatBid returns the first seatbid object. Only that seat carries bids for the request.
func firstSeatBid(body []byte) ([]byte, error) {
	var seat []byte
	_, err := jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if seat == nil && dataType == jsonparser.Object {
			seat = value
		}
	}, "seatbid")
	if err != nil {
		return nil, err
	}
	if seat == nil {
		return nil, jsonparser.KeyPathNotFoundError
	}
	return seat, nil
}

func (a *PubmaticAdapter) makeBidResult(bid []byte, referrer string) *adapters.BidResult {
	impID, _ := jsonparser.GetString(bid, "impid")
	bidID, _ := jsonparser.GetString(bid, "id")
	creativeID, _ := jsonparser.GetString(bid, "crid")
	dealID, _ := jsonparser.GetString(bid, "dealid")
	adm, _ := jsonparser.GetString(bid, "adm")
	width, _ := jsonparser.GetInt(bid, "w")
	height, _ := jsonparser.GetInt(bid, "h")

	if creativeID == "" {
		creativeID = bidID
	}

	return &adapters.BidResult{
		RequestID:  impID,
		CPM:        formatCPM(readPrice(bid)),
		Width:      width,
		Height:     height,
		CreativeID: creativeID,
		DealID:     dealID,
		Currency:   currency,
		NetRevenue: a.variant.NetRevenue,
		TTL:        bidTTL,
		Referrer:   referrer,
		Ad:         adm,
	}
}

// formatCPM renders two decimals, rounding halves away from zero.
func formatCPM(price float64) string {
	return strconv.FormatFloat(math.Round(price*100)/100, 'f', 2, 64)
}

// readPrice accepts a number or a numeric string and defaults to 0.
func readPrice(bid []byte) float64 {
	value, dataType, _, err := jsonparser.Get(bid, "price")
	if err != nil {
		return 0
	}

	switch dataType {
	case jsonparser.Number:
		price, err := jsonparser.ParseFloat(value)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			return 0
		}
		return price
	case jsonparser.String:
		if price := parseFloat(string(value)); price != nil {
			return *price
		}
	}
	return 0
}

func (a *PubmaticAdapter) GetUserSyncs(options adapters.SyncOptions, auction *adapters.AuctionContext) ([]usersync.Sync, []error) {
	if !options.IframeEnabled {
		logf("Please enable iframe based user sync.")
		return []usersync.Sync{}, []error{&errortypes.Warning{
			Message:     "Please enable iframe based user sync.",
			WarningCode: errortypes.IframeSyncDisabledWarningCode,
		}}
	}

	publisherID := ""
	if auction != nil {
		publisherID = strings.TrimSpace(auction.PublisherID)
	}

	sync, err := a.syncer.GetSync(usersync.AllowedSyncTypes(options.IframeEnabled), publisherID)
	if err != nil {
		return []usersync.Sync{}, []error{err}
	}
	return []usersync.Sync{sync}, nil
}
