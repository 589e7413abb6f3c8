package config

import (
	"fmt"
	"strings"
	"text/template"

	validator "github.com/asaskevich/govalidator"
	"github.com/prebid/openbid/macros"
	"github.com/prebid/openbid/openrtb_ext"
	"github.com/spf13/viper"
)

type Adapter struct {
	Endpoint string `mapstructure:"endpoint"` // Required
	// UserSyncURL is the iframe URL returned by /usersync for this bidder.
	//
	// This value will be interpreted as a Golang Template. At runtime, the following Template variables will be replaced.
	//
	//   {{.PublisherID}} -- The publisher id of the last auction built for this bidder, or "0".
	//
	// For more info on templates, see: https://golang.org/pkg/text/template/
	UserSyncURL string `mapstructure:"usersync_url"`
	Disabled    bool   `mapstructure:"disabled"`
}

const (
	pubmaticClientEndpoint = "https://hbopenbid.pubmatic.com/translator?source=prebid-client"
	pubmaticServerEndpoint = "https://hb.pubmatic.com/openrtb/241/?"
	pubmaticUserSyncURL    = "https://ads.pubmatic.com/AdServer/js/showad.js#PIX&kdntuid=1&p={{.PublisherID}}"
)

func setAdapterDefaults(v *viper.Viper) {
	v.SetDefault("adapters.pubmatic.endpoint", pubmaticClientEndpoint)
	v.SetDefault("adapters.pubmatic.usersync_url", pubmaticUserSyncURL)
	v.SetDefault("adapters.pubmatic.disabled", false)
	v.SetDefault("adapters.pubmaticserver.endpoint", pubmaticServerEndpoint)
	v.SetDefault("adapters.pubmaticserver.usersync_url", pubmaticUserSyncURL)
	v.SetDefault("adapters.pubmaticserver.disabled", false)
}

// normalizeAdapterKeys restores the case of known bidder names.
func normalizeAdapterKeys(adapters map[string]Adapter) map[string]Adapter {
	normalized := make(map[string]Adapter, len(adapters))
	for key, adapter := range adapters {
		for _, bidder := range openrtb_ext.CoreBidderNames() {
			if strings.EqualFold(key, string(bidder)) {
				key = string(bidder)
				break
			}
		}
		normalized[key] = adapter
	}
	return normalized
}

// validateAdapters validates adapter's endpoint and user sync URL
func validateAdapters(adapterMap map[string]Adapter, errs []error) []error {
	for adapterName, adapter := range adapterMap {
		if _, ok := openrtb_ext.GetBidderName(adapterName); !ok {
			errs = append(errs, fmt.Errorf("adapters.%s is not a known bidder", adapterName))
			continue
		}
		if !adapter.Disabled {
			errs = validateAdapterEndpoint(adapter.Endpoint, adapterName, errs)
			errs = validateAdapterUserSyncURL(adapter.UserSyncURL, adapterName, errs)
		}
	}
	return errs
}

// validateAdapterEndpoint makes sure that an adapter has a valid endpoint
// associated with it
func validateAdapterEndpoint(endpoint string, adapterName string, errs []error) []error {
	if endpoint == "" {
		return append(errs, fmt.Errorf("There's no default endpoint available for %s. Calls to this bidder will fail. "+
			"Please set adapters.%s.endpoint in your app config", adapterName, strings.ToLower(adapterName)))
	}

	// Validating using both IsURL and IsRequestURL because IsURL allows relative paths
	// whereas IsRequestURL requires absolute path but fails to check other valid URL
	// format constraints.
	if !validator.IsURL(endpoint) || !validator.IsRequestURL(endpoint) {
		errs = append(errs, fmt.Errorf("The endpoint: %s for %s is not a valid URL", endpoint, adapterName))
	}
	return errs
}

// validateAdapterUserSyncURL validates an adapter's user sync URL. The iframe sync is the only
// sync type the bidders offer, so the URL is required.
func validateAdapterUserSyncURL(userSyncURL string, adapterName string, errs []error) []error {
	if userSyncURL == "" {
		return append(errs, fmt.Errorf("adapters.%s.usersync_url is required", strings.ToLower(adapterName)))
	}

	userSyncTemplate, err := template.New("userSyncTemplate").Parse(userSyncURL)
	if err != nil {
		return append(errs, fmt.Errorf("Invalid user sync URL template: %s for adapter: %s. %v", userSyncURL, adapterName, err))
	}
	url, err := macros.ResolveMacros(userSyncTemplate, macros.UserSyncTemplateParams{PublisherID: "9999"})
	if err != nil {
		return append(errs, fmt.Errorf("Unable to resolve user sync URL: %s for adapter: %s. %v", userSyncURL, adapterName, err))
	}
	if !validator.IsURL(url) {
		errs = append(errs, fmt.Errorf("The user_sync URL for %s is invalid: %s", adapterName, url))
	}
	return errs
}
