package pubmatic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/buger/jsonparser"
	"github.com/prebid/openbid/errortypes"
	"github.com/xorcare/pointer"
)

const maxZoneIDs = 50

// Numbers are read from the longest numeric prefix, so "1.50USD" is 1.5 and "1985.0" is 1985.
var (
	floatPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)
	hexPrefix   = regexp.MustCompile(`^[+-]?0[xX][0-9a-fA-F]+`)
	intPrefix   = regexp.MustCompile(`^[+-]?[0-9]+`)
)

// Params is the normalized view of the params of a single bid. Optional numbers are nil when the
// value was missing or did not parse; a parsed zero is kept.
type Params struct {
	PublisherID         string
	AdSlot              string
	Kadfloor            *float64
	PmZoneID            string
	Lat                 *float64
	Lon                 *float64
	Yob                 *int64
	ProfileID           *int64
	VersionID           *int64
	Gender              string
	WrapperImpressionID string
	Kadpageurl          string
	Dctr                string
	AdUnitID            string
	DivID               string
	AdUnitIndex         string

	// Extra holds unrecognized keys untouched.
	Extra map[string]json.RawMessage
}

type paramRule struct {
	set func(p *Params, value string)
	get func(p *Params) (string, bool)

	// acceptsNumber allows a JSON number in place of a string.
	acceptsNumber bool
}

var paramRules = map[string]paramRule{
	"publisherId": stringRule(func(p *Params) *string { return &p.PublisherID }),
	"adSlot":      stringRule(func(p *Params) *string { return &p.AdSlot }),
	"gender":      stringRule(func(p *Params) *string { return &p.Gender }),
	"wiid":        stringRule(func(p *Params) *string { return &p.WrapperImpressionID }),
	"kadpageurl":  stringRule(func(p *Params) *string { return &p.Kadpageurl }),
	"adUnitId":    stringRule(func(p *Params) *string { return &p.AdUnitID }),
	"divId":       stringRule(func(p *Params) *string { return &p.DivID }),
	"kadfloor":    floatRule(func(p *Params) **float64 { return &p.Kadfloor }),
	"lat":         floatRule(func(p *Params) **float64 { return &p.Lat }),
	"lon":         floatRule(func(p *Params) **float64 { return &p.Lon }),
	"yob":         intRule(func(p *Params) **int64 { return &p.Yob }),
	"profId":      intRule(func(p *Params) **int64 { return &p.ProfileID }),
	"verId":       intRule(func(p *Params) **int64 { return &p.VersionID }),
	"pmzoneid": {
		set: func(p *Params, value string) { p.PmZoneID = normalizeZoneIDs(value) },
		get: func(p *Params) (string, bool) { return p.PmZoneID, p.PmZoneID != "" },
	},
	"dctr": {
		set: func(p *Params, value string) { p.Dctr = strings.TrimSpace(value) },
		get: func(p *Params) (string, bool) { return p.Dctr, p.Dctr != "" },
	},
	"adUnitIndex": {
		set:           func(p *Params, value string) { p.AdUnitIndex = value },
		get:           func(p *Params) (string, bool) { return p.AdUnitIndex, p.AdUnitIndex != "" },
		acceptsNumber: true,
	},
}

func stringRule(field func(p *Params) *string) paramRule {
	return paramRule{
		set: func(p *Params, value string) { *field(p) = value },
		get: func(p *Params) (string, bool) { return *field(p), *field(p) != "" },
	}
}

func floatRule(field func(p *Params) **float64) paramRule {
	return paramRule{
		set: func(p *Params, value string) { *field(p) = parseFloat(value) },
		get: func(p *Params) (string, bool) {
			if *field(p) == nil {
				return "", false
			}
			return strconv.FormatFloat(**field(p), 'f', -1, 64), true
		},
	}
}

func intRule(field func(p *Params) **int64) paramRule {
	return paramRule{
		set: func(p *Params, value string) { *field(p) = parseInt(value) },
		get: func(p *Params) (string, bool) {
			if *field(p) == nil {
				return "", false
			}
			return strconv.FormatInt(**field(p), 10), true
		},
	}
}

func parseFloat(value string) *float64 {
	prefix := floatPrefix.FindString(strings.TrimLeftFunc(value, unicode.IsSpace))
	if prefix == "" {
		return nil
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return pointer.Float64(f)
}

func parseInt(value string) *int64 {
	value = strings.TrimLeftFunc(value, unicode.IsSpace)
	if prefix := hexPrefix.FindString(value); prefix != "" {
		i, err := strconv.ParseInt(prefix, 0, 64)
		if err != nil {
			return nil
		}
		return pointer.Int64(i)
	}
	prefix := intPrefix.FindString(value)
	if prefix == "" {
		return nil
	}
	i, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return nil
	}
	return pointer.Int64(i)
}

func normalizeZoneIDs(value string) string {
	zoneIDs := strings.Split(value, ",")
	if len(zoneIDs) > maxZoneIDs {
		zoneIDs = zoneIDs[:maxZoneIDs]
	}
	for i := range zoneIDs {
		zoneIDs[i] = strings.TrimSpace(zoneIDs[i])
	}
	return strings.Join(zoneIDs, ",")
}

// NormalizeParams builds the typed view of a params object. Recognized keys must hold strings:
// any other value is dropped, with a warning unless it is null, false or 0. Unrecognized keys
// are kept as they are.
func NormalizeParams(raw json.RawMessage) (Params, []error) {
	params := Params{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return params, nil
	}

	var errs []error
	err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		name := string(key)
		rule, recognized := paramRules[name]
		if !recognized {
			if params.Extra == nil {
				params.Extra = make(map[string]json.RawMessage)
			}
			params.Extra[name] = compactValue(value, dataType)
			return nil
		}

		switch {
		case dataType == jsonparser.String:
			str, err := jsonparser.ParseString(value)
			if err != nil {
				errs = append(errs, &errortypes.Warning{
					Message:     fmt.Sprintf("Ignoring param key - '%s': %v", name, err),
					WarningCode: errortypes.InvalidParamsWarningCode,
				})
				return nil
			}
			rule.set(&params, str)
		case dataType == jsonparser.Number && rule.acceptsNumber:
			rule.set(&params, string(value))
		case !isFalsy(value, dataType):
			errs = append(errs, &errortypes.Warning{
				Message: fmt.Sprintf("Ignoring param key - '%s' with value '%s'. Expects string-value, found - '%s'",
					name, value, typeName(dataType)),
				WarningCode: errortypes.IgnoredParamWarningCode,
			})
		}
		return nil
	})
	if err != nil {
		return Params{}, []error{&errortypes.BadInput{
			Message: fmt.Sprintf("params must be a JSON object: %v", err),
		}}
	}

	return params, errs
}

// Raw encodes the normalized view back into a params object. Normalizing the result yields
// the same Params.
func (p Params) Raw() json.RawMessage {
	values := make(map[string]json.RawMessage, len(paramRules)+len(p.Extra))
	for name, value := range p.Extra {
		values[name] = value
	}
	for name, rule := range paramRules {
		if value, ok := rule.get(&p); ok {
			values[name] = quote(value)
		}
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return nil
	}
	return bytes.TrimSpace(buf.Bytes())
}

func quote(value string) json.RawMessage {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.Encode(value)
	return bytes.TrimSpace(buf.Bytes())
}

// compactValue restores the JSON text of a value handed over by jsonparser, which strips the
// quotes from strings.
func compactValue(value []byte, dataType jsonparser.ValueType) json.RawMessage {
	if dataType == jsonparser.String {
		quoted := make([]byte, 0, len(value)+2)
		quoted = append(quoted, '"')
		quoted = append(quoted, value...)
		return append(quoted, '"')
	}

	buf := &bytes.Buffer{}
	if err := json.Compact(buf, value); err != nil {
		return append(json.RawMessage(nil), value...)
	}
	return buf.Bytes()
}

func isFalsy(value []byte, dataType jsonparser.ValueType) bool {
	switch dataType {
	case jsonparser.Null:
		return true
	case jsonparser.Boolean:
		return string(value) == "false"
	case jsonparser.Number:
		f, err := strconv.ParseFloat(string(value), 64)
		return err == nil && f == 0
	}
	return false
}

func typeName(dataType jsonparser.ValueType) string {
	switch dataType {
	case jsonparser.Number:
		return "number"
	case jsonparser.Boolean:
		return "boolean"
	case jsonparser.Array, jsonparser.Object, jsonparser.Null:
		return "object"
	}
	return "undefined"
}
