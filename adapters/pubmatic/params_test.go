package pubmatic

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/prebid/openbid/errortypes"
	"github.com/prebid/openbid/openrtb_ext"
	"github.com/stretchr/testify/assert"
	"github.com/xorcare/pointer"
)

// TestValidParamsForPubmatic makes sure that the pubmatic schema accepts all params shapes the adapter reads
func TestValidParamsForPubmatic(t *testing.T) {
	validator, err := openrtb_ext.NewBidderParamsValidator("../../static/bidder-params")
	if err != nil {
		t.Fatalf("Failed to fetch the json-schemas. %v", err)
	}

	for _, validParam := range validParams {
		if err := validator.Validate(openrtb_ext.BidderPubmatic, json.RawMessage(validParam)); err != nil {
			t.Errorf("Incorrect pubmatic params: %s", validParam)
		}
	}
}

// TestInvalidParamsForPubmatic makes sure that the pubmatic schema rejects params missing the mandatory keys
func TestInvalidParamsForPubmatic(t *testing.T) {
	validator, err := openrtb_ext.NewBidderParamsValidator("../../static/bidder-params")
	if err != nil {
		t.Fatalf("Failed to fetch the json-schemas. %v", err)
	}

	for _, invalidParam := range invalidParams {
		if err := validator.Validate(openrtb_ext.BidderPubmatic, json.RawMessage(invalidParam)); err == nil {
			t.Errorf("Schema allowed unexpected params: %s", invalidParam)
		}
	}
}

func TestValidParamsForPubmaticServer(t *testing.T) {
	validator, err := openrtb_ext.NewBidderParamsValidator("../../static/bidder-params")
	if err != nil {
		t.Fatalf("Failed to fetch the json-schemas. %v", err)
	}

	serverParams := []string{
		`{"adSlot":"AdTag_Div1@728x90:0","publisherId":"5890","adUnitId":"Div1","divId":"div-gpt-1","adUnitIndex":0}`,
		`{"adSlot":"AdTag_Div1@728x90:0","publisherId":"5890","adUnitIndex":"2"}`,
	}
	for _, validParam := range serverParams {
		if err := validator.Validate(openrtb_ext.BidderPubmaticServer, json.RawMessage(validParam)); err != nil {
			t.Errorf("Incorrect pubmaticServer params: %s", validParam)
		}
	}

	if err := validator.Validate(openrtb_ext.BidderPubmaticServer, json.RawMessage(`{"adSlot":"a@1x1","publisherId":"5890","divId":7}`)); err == nil {
		t.Errorf("Schema allowed a numeric divId")
	}
}

var validParams = []string{
	`{"adSlot":"AdTag_Div1@728x90:0","publisherId":"5890"}`,
	`{"adSlot":"AdTag_Div1@728x90:0","publisherId":"5890","kadfloor":"0.50","pmzoneid":"zone1,zone2"}`,
	`{"adSlot":"AdTag_Div1@728x90:0","publisherId":"5890","yob":1980,"lat":false}`,
	`{"adSlot":"AdTag_Div1","publisherId":"5890"}`,
}

var invalidParams = []string{
	``,
	`null`,
	`{}`,
	`{"adSlot":"AdTag_Div1@728x90:0"}`,
	`{"publisherId":"5890"}`,
	`{"adSlot":"AdTag_Div1@728x90:0","publisherId":5890}`,
	`{"adSlot":1234,"publisherId":"5890"}`,
}

func TestNormalizeParams(t *testing.T) {
	testCases := []struct {
		description      string
		givenParams      string
		expectedParams   Params
		expectedWarnings []string
	}{
		{
			description: "Strings",
			givenParams: `{"publisherId":"9999","adSlot":"abcd@728x90","gender":" M ","wiid":"w-1","kadpageurl":"http://example.com"}`,
			expectedParams: Params{
				PublisherID:         "9999",
				AdSlot:              "abcd@728x90",
				Gender:              " M ",
				WrapperImpressionID: "w-1",
				Kadpageurl:          "http://example.com",
			},
		},
		{
			description: "Numbers From Strings",
			givenParams: `{"kadfloor":" 1.25 ","lat":"40.7","lon":"-73.9","yob":"1985","profId":"42","verId":"3"}`,
			expectedParams: Params{
				Kadfloor:  pointer.Float64(1.25),
				Lat:       pointer.Float64(40.7),
				Lon:       pointer.Float64(-73.9),
				Yob:       pointer.Int64(1985),
				ProfileID: pointer.Int64(42),
				VersionID: pointer.Int64(3),
			},
		},
		{
			description: "Zero Is Present",
			givenParams: `{"kadfloor":"0","lat":"0.0","yob":"0"}`,
			expectedParams: Params{
				Kadfloor: pointer.Float64(0),
				Lat:      pointer.Float64(0),
				Yob:      pointer.Int64(0),
			},
		},
		{
			description:    "Unparsable Numbers Are Absent",
			givenParams:    `{"kadfloor":"cheap","lat":"NaN","lon":"","yob":"x1985","profId":"Infinity","verId":"  "}`,
			expectedParams: Params{},
		},
		{
			description: "Numeric Prefixes",
			givenParams: `{"kadfloor":"1.50USD","lat":" .5deg","lon":"-7e1x","yob":"1985.0","profId":"0x1A","verId":"19x5"}`,
			expectedParams: Params{
				Kadfloor:  pointer.Float64(1.5),
				Lat:       pointer.Float64(0.5),
				Lon:       pointer.Float64(-70),
				Yob:       pointer.Int64(1985),
				ProfileID: pointer.Int64(26),
				VersionID: pointer.Int64(19),
			},
		},
		{
			description:    "Zone IDs Trimmed",
			givenParams:    `{"pmzoneid":" zone1 ,zone2,  zone3"}`,
			expectedParams: Params{PmZoneID: "zone1,zone2,zone3"},
		},
		{
			description:    "Custom Targeting Trimmed",
			givenParams:    `{"dctr":"  key1=val1|key2=val2  "}`,
			expectedParams: Params{Dctr: "key1=val1|key2=val2"},
		},
		{
			description:    "Blank Custom Targeting Is Absent",
			givenParams:    `{"dctr":"   "}`,
			expectedParams: Params{},
		},
		{
			description:    "Numeric Slot Index",
			givenParams:    `{"adUnitIndex":2,"adUnitId":"Div1","divId":"div-gpt-1"}`,
			expectedParams: Params{AdUnitIndex: "2", AdUnitID: "Div1", DivID: "div-gpt-1"},
		},
		{
			description:    "Falsy Non Strings Dropped Silently",
			givenParams:    `{"publisherId":0,"gender":null,"lat":false,"wiid":""}`,
			expectedParams: Params{},
		},
		{
			description:    "Truthy Non Strings Dropped With Warning",
			givenParams:    `{"publisherId":9999,"yob":1985,"lat":true,"pmzoneid":["a","b"]}`,
			expectedParams: Params{},
			expectedWarnings: []string{
				"Ignoring param key - 'publisherId' with value '9999'. Expects string-value, found - 'number'",
				"Ignoring param key - 'yob' with value '1985'. Expects string-value, found - 'number'",
				"Ignoring param key - 'lat' with value 'true'. Expects string-value, found - 'boolean'",
				`Ignoring param key - 'pmzoneid' with value '["a","b"]'. Expects string-value, found - 'object'`,
			},
		},
		{
			description: "Unrecognized Keys Pass Through",
			givenParams: `{"publisherId":"9999","age":"20","keywords":[{"key": "k", "vals": ["v"]}]}`,
			expectedParams: Params{
				PublisherID: "9999",
				Extra: map[string]json.RawMessage{
					"age":      json.RawMessage(`"20"`),
					"keywords": json.RawMessage(`[{"key":"k","vals":["v"]}]`),
				},
			},
		},
		{
			description:    "Null Params",
			givenParams:    `null`,
			expectedParams: Params{},
		},
	}

	for _, test := range testCases {
		params, errs := NormalizeParams(json.RawMessage(test.givenParams))

		assert.Equal(t, test.expectedParams, params, test.description+":params")
		assert.Len(t, errs, len(test.expectedWarnings), test.description+":errs")
		for i, expected := range test.expectedWarnings {
			if i < len(errs) {
				assert.EqualError(t, errs[i], expected, test.description+":errs")
				assert.True(t, errortypes.IsWarning(errs[i]), test.description+":severity")
				assert.Equal(t, errortypes.IgnoredParamWarningCode, errortypes.ReadCode(errs[i]), test.description+":code")
			}
		}
	}
}

func TestNormalizeParamsNotAnObject(t *testing.T) {
	for _, given := range []string{`[]`, `"abcd@728x90"`, `{"publisherId":`} {
		params, errs := NormalizeParams(json.RawMessage(given))

		assert.Equal(t, Params{}, params, given)
		if assert.Len(t, errs, 1, given) {
			assert.IsType(t, &errortypes.BadInput{}, errs[0], given)
		}
	}
}

func TestNormalizeParamsZoneCap(t *testing.T) {
	for _, count := range []int{1, 49, 50, 51, 200} {
		zones := make([]string, count)
		for i := range zones {
			zones[i] = fmt.Sprintf(" zone%d ", i)
		}

		params, errs := NormalizeParams(json.RawMessage(fmt.Sprintf(`{"pmzoneid":%q}`, strings.Join(zones, ","))))

		assert.Empty(t, errs)
		normalized := strings.Split(params.PmZoneID, ",")
		assert.True(t, len(normalized) <= maxZoneIDs, "%d zones normalized to %d", count, len(normalized))
		assert.Equal(t, "zone0", normalized[0])
		for _, zone := range normalized {
			assert.Equal(t, strings.TrimSpace(zone), zone)
		}
	}
}

func TestNormalizeParamsIdempotent(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"publisherId":"9999","adSlot":" abcd@728x90:1 ","kadfloor":" 1.50","pmzoneid":"a , b,c"}`,
		`{"lat":"40.712776","lon":"-74.005974","yob":"1985","gender":"F","profId":"12","verId":"0"}`,
		`{"dctr":"  k1=v1|k2=v2 ","wiid":"abc-123","kadpageurl":"https://example.com/<path>?a=1&b=2"}`,
		`{"adUnitIndex":3,"adUnitId":"Div1","divId":"div-gpt-1","custom":{"nested": [1, 2, "x<y"]},"flag":true}`,
		`{"yob":1985,"lat":"bad","kadfloor":"1e-7","escaped":"line\nbreak é"}`,
	}

	for _, input := range inputs {
		once, _ := NormalizeParams(json.RawMessage(input))
		twice, errs := NormalizeParams(once.Raw())

		assert.Empty(t, errs, input)
		assert.Equal(t, once, twice, input)
	}
}
