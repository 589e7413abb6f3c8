package openrtb_ext

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// BidderName refers to a bidder code understood by this service.
type BidderName string

const (
	BidderPubmatic       BidderName = "pubmatic"
	BidderPubmaticServer BidderName = "pubmaticServer"
)

var coreBidderNames = []BidderName{
	BidderPubmatic,
	BidderPubmaticServer,
}

// CoreBidderNames returns every bidder served by this module. Callers may modify the slice.
func CoreBidderNames() []BidderName {
	names := make([]BidderName, len(coreBidderNames))
	copy(names, coreBidderNames)
	return names
}

// GetBidderName matches a bidder code exactly, case included.
func GetBidderName(name string) (BidderName, bool) {
	for _, bidderName := range coreBidderNames {
		if string(bidderName) == name {
			return bidderName, true
		}
	}
	return "", false
}

func (name BidderName) String() string {
	return string(name)
}

// BidderParamValidator checks the params of a single bid against the bidder's JSON schema before
// the bid reaches the adapter.
type BidderParamValidator interface {
	Validate(name BidderName, ext json.RawMessage) error
	// Schema returns the JSON schema used to perform validation.
	Schema(name BidderName) string
}

// NewBidderParamsValidator compiles one <bidder>.json schema per bidder from schemaDirectory. It
// errors when a file names an unknown bidder or when a bidder has no schema.
func NewBidderParamsValidator(schemaDirectory string) (BidderParamValidator, error) {
	fileInfos, err := ioutil.ReadDir(schemaDirectory)
	if err != nil {
		return nil, fmt.Errorf("Failed to read JSON schemas from directory %s. %v", schemaDirectory, err)
	}

	validator := &bidderParamValidator{
		schemaContents: make(map[BidderName]string, len(coreBidderNames)),
		parsedSchemas:  make(map[BidderName]*gojsonschema.Schema, len(coreBidderNames)),
	}
	for _, fileInfo := range fileInfos {
		path := filepath.Join(schemaDirectory, fileInfo.Name())
		bidderName, ok := GetBidderName(strings.TrimSuffix(fileInfo.Name(), ".json"))
		if !ok {
			return nil, fmt.Errorf("File %s does not match a valid BidderName.", path)
		}

		contents, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Failed to read file %s: %v", path, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(contents))
		if err != nil {
			return nil, fmt.Errorf("Failed to load json schema at %s: %v", path, err)
		}

		validator.parsedSchemas[bidderName] = schema
		validator.schemaContents[bidderName] = string(contents)
	}

	for _, bidderName := range coreBidderNames {
		if _, ok := validator.parsedSchemas[bidderName]; !ok {
			return nil, fmt.Errorf("Schema %s is missing.", filepath.Join(schemaDirectory, string(bidderName)+".json"))
		}
	}
	return validator, nil
}

type bidderParamValidator struct {
	schemaContents map[BidderName]string
	parsedSchemas  map[BidderName]*gojsonschema.Schema
}

// Validate joins every schema violation into one error.
func (validator *bidderParamValidator) Validate(name BidderName, ext json.RawMessage) error {
	schema, ok := validator.parsedSchemas[name]
	if !ok {
		return fmt.Errorf("unknown bidder: %s", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(ext))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}
	return errors.New(strings.Join(violations, "; "))
}

func (validator *bidderParamValidator) Schema(name BidderName) string {
	return validator.schemaContents[name]
}
