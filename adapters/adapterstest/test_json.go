package adapterstest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prebid/openbid/adapters"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// RunJSONBidderTest is a helper method intended to unit test Bidders' adapters.
// It requires that:
//
//  1. Bidders communicate with external servers over HTTP.
//  2. The HTTP request bodies are legal JSON.
//
// Although the project does not require it, it's a good idea to use this for your Bidder.
// It will write test code and help keep the adapter behavior documented with real examples.
//
// Test files are found in the subdirectories of rootDir. Each file defines the bids handed to
// BuildRequests, the request it should produce, and optionally a mocked server response with
// the bids InterpretResponse should return.
//
// Files in the "exemplary" directory must not produce any errors. Files in the "supplemental"
// directory exercise edge cases and declare the errors they expect.
func RunJSONBidderTest(t *testing.T, rootDir string, bidder adapters.Bidder) {
	runTests(t, fmt.Sprintf("%s/exemplary", rootDir), bidder, false)
	runTests(t, fmt.Sprintf("%s/supplemental", rootDir), bidder, true)
}

func runTests(t *testing.T, directory string, bidder adapters.Bidder, allowErrors bool) {
	t.Helper()
	if specFiles, err := ioutil.ReadDir(directory); err == nil {
		for _, specFile := range specFiles {
			if filepath.Ext(specFile.Name()) != ".json" {
				continue
			}
			fileName := fmt.Sprintf("%s/%s", directory, specFile.Name())
			specData, err := loadFile(fileName)
			if err != nil {
				t.Fatalf("Failed to load contents of file %s: %v", fileName, err)
			}

			if !allowErrors && (len(specData.BuildErrors) > 0 || len(specData.InterpretErrors) > 0) {
				t.Fatalf("Exemplary spec %s must not expect errors.", fileName)
			}

			runSpec(t, fileName, specData, bidder)
		}
	}
}

// loadFile reads and parses a file as a test case. If something goes wrong, it returns an error.
func loadFile(filename string) (*testSpec, error) {
	specData, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read file %s: %v", filename, err)
	}

	var spec testSpec
	if err := json.Unmarshal(specData, &spec); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal JSON from file: %v", err)
	}

	return &spec, nil
}

// runSpec runs a single test case. It will make sure:
//
//   - That the Bidder does not return nil HTTP requests, bids, or errors inside their lists
//   - That the Bidder's HTTP request and AuctionContext match the fixture's expectations
//   - That the Bidder's bids match the fixture's expectations
//   - That the Bidder's errors match the fixture's expectations
func runSpec(t *testing.T, filename string, spec *testSpec, bidder adapters.Bidder) {
	t.Helper()

	page := spec.BidRequest.Page
	reqData, auction, errs := bidder.BuildRequests(spec.BidRequest.Bids, &page)
	diffErrorLists(t, fmt.Sprintf("%s: BuildRequests", filename), errs, spec.BuildErrors)

	if spec.ExpectedRequest == nil {
		if reqData != nil {
			t.Errorf("%s: Expected no request. Got %s", filename, string(reqData.Body))
		}
		if auction != nil {
			t.Errorf("%s: Expected no auction context. Got %#v", filename, auction)
		}
		return
	}

	if reqData == nil {
		t.Fatalf("%s: Expected a request. Got none.", filename)
	}
	diffHttpRequests(t, filename, reqData, spec.ExpectedRequest)

	if spec.ExpectedAuction != nil {
		if auction == nil {
			t.Errorf("%s: Expected an auction context. Got none.", filename)
		} else if auction.PublisherID != spec.ExpectedAuction.PublisherID {
			t.Errorf("%s: Expected auction publisher %q. Got %q", filename, spec.ExpectedAuction.PublisherID, auction.PublisherID)
		}
	}

	if spec.MockResponse == nil {
		return
	}

	bids, errs := bidder.InterpretResponse(&adapters.ResponseData{
		StatusCode: spec.MockResponse.Status,
		Body:       spec.MockResponse.Body,
		Headers:    http.Header{},
	}, &page)
	diffErrorLists(t, fmt.Sprintf("%s: InterpretResponse", filename), errs, spec.InterpretErrors)

	for i, bid := range bids {
		if bid == nil {
			t.Errorf("%s: Bidder returned a nil bid at index %d", filename, i)
		}
	}

	if bids == nil {
		bids = []*adapters.BidResult{}
	}
	actualBids, err := json.Marshal(bids)
	if err != nil {
		t.Fatalf("%s: Failed to marshal actual bids: %v", filename, err)
	}
	expectedBids := spec.ExpectedBids
	if len(expectedBids) == 0 {
		expectedBids = json.RawMessage("[]")
	}
	diffJson(t, fmt.Sprintf("%s: bids", filename), actualBids, expectedBids)
}

type testSpec struct {
	BidRequest      bidRequestSpec          `json:"mockBidRequest"`
	ExpectedRequest *httpRequestSpec        `json:"expectedRequest"`
	ExpectedAuction *auctionContextSpec     `json:"expectedAuctionContext"`
	BuildErrors     []testSpecExpectedError `json:"expectedBuildErrors"`
	MockResponse    *httpResponseSpec       `json:"mockResponse"`
	ExpectedBids    json.RawMessage         `json:"expectedBidResults"`
	InterpretErrors []testSpecExpectedError `json:"expectedInterpretErrors"`
}

type bidRequestSpec struct {
	Page adapters.PageContext   `json:"page"`
	Bids []*adapters.BidRequest `json:"bids"`
}

type auctionContextSpec struct {
	PublisherID string `json:"publisherId"`
}

type testSpecExpectedError struct {
	Value      string `json:"value"`
	Comparison string `json:"comparison"`
}

type httpRequestSpec struct {
	Method  string            `json:"method"`
	Uri     string            `json:"uri"`
	Body    json.RawMessage   `json:"body"`
	Headers map[string]string `json:"headers"`
}

type httpResponseSpec struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// diffErrorLists compares the errors against the fixture, in order.
func diffErrorLists(t *testing.T, description string, actual []error, expected []testSpecExpectedError) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Fatalf("%s had wrong error count. Expected %d, got %d (%v)", description, len(expected), len(actual), actual)
	}
	for i := 0; i < len(actual); i++ {
		if expected[i].Comparison == "literal" {
			if expected[i].Value != actual[i].Error() {
				t.Errorf(`%s error[%d] had wrong message. Expected "%s", got "%s"`, description, i, expected[i].Value, actual[i].Error())
			}
		} else if expected[i].Comparison == "regex" {
			if matched, _ := regexp.MatchString(expected[i].Value, actual[i].Error()); !matched {
				t.Errorf(`%s error[%d] had wrong message. Expected match with regex "%s", got "%s"`, description, i, expected[i].Value, actual[i].Error())
			}
		} else {
			t.Fatalf(`invalid comparison type "%s"`, expected[i].Comparison)
		}
	}
}

// diffHttpRequests compares the actual HTTP request data to the expected one.
// It assumes that the request bodies are JSON
func diffHttpRequests(t *testing.T, filename string, actual *adapters.RequestData, expected *httpRequestSpec) {
	t.Helper()

	if expected.Method != "" && expected.Method != actual.Method {
		t.Errorf(`%s: Expected method "%s". Got "%s"`, filename, expected.Method, actual.Method)
	}
	if expected.Uri != actual.Uri {
		t.Errorf(`%s: Expected uri "%s". Got "%s"`, filename, expected.Uri, actual.Uri)
	}
	for key, value := range expected.Headers {
		if actualValue := actual.Headers.Get(key); actualValue != value {
			t.Errorf(`%s: Expected header %s "%s". Got "%s"`, filename, key, value, actualValue)
		}
	}
	diffJson(t, fmt.Sprintf("%s: request body", filename), actual.Body, expected.Body)
}

// diffJson compares two JSON byte arrays for structural equality. It will produce an error if either
// byte array is not actually JSON.
func diffJson(t *testing.T, description string, actual []byte, expected []byte) {
	t.Helper()

	if len(actual) == 0 && len(expected) == 0 {
		return
	}
	if len(actual) == 0 || len(expected) == 0 {
		t.Fatalf("%s json diff failed. Expected %d bytes in body, but got %d.", description, len(expected), len(actual))
	}

	actual, expected = asObject(actual), asObject(expected)
	diff, err := gojsondiff.New().Compare(actual, expected)
	if err != nil {
		t.Fatalf("%s json diff failed. %v", description, err)
	}

	if diff.Modified() {
		var left interface{}
		if err := json.Unmarshal(actual, &left); err != nil {
			t.Fatalf("%s json did not match, but unmarshalling failed. %v", description, err)
		}
		printer := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
			ShowArrayIndex: true,
		})
		output, err := printer.Format(diff)
		if err != nil {
			t.Errorf("%s did not match, but diff formatting failed. %v", description, err)
		} else {
			t.Errorf("%s json did not match expected.\n\n%s", description, output)
		}
	}
}

// asObject wraps a top-level JSON array, which gojsondiff cannot compare, in an object.
func asObject(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return data
	}
	wrapped := make([]byte, 0, len(trimmed)+len(`{"items":}`))
	wrapped = append(wrapped, `{"items":`...)
	wrapped = append(wrapped, trimmed...)
	return append(wrapped, '}')
}
