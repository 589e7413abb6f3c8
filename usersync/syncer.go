package usersync

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	validator "github.com/asaskevich/govalidator"
	"github.com/prebid/openbid/macros"
)

// Syncer represents the user sync configuration for a bidder.
type Syncer interface {
	// Key is the name of the syncer, usually the bidder code.
	Key() string

	// SupportsType returns true if the syncer supports at least one of the specified sync types.
	SupportsType(syncTypes []SyncType) bool

	// GetSync returns a user sync for the user's device to perform, or an error if none of the
	// sync types are supported or if macro substitution fails.
	GetSync(syncTypes []SyncType, publisherID string) (Sync, error)
}

// Sync represents a user sync for the user's device to perform.
type Sync struct {
	Type SyncType `json:"type"`
	URL  string   `json:"url"`
}

// DefaultPublisherID is rendered when no request has been built yet.
const DefaultPublisherID = "0"

type standardSyncer struct {
	key    string
	iframe *template.Template
}

// NewSyncer creates an iframe Syncer from a text/template URL, or an error if the template
// does not parse or does not render to a valid URL.
func NewSyncer(key string, iframeURL string) (Syncer, error) {
	if iframeURL == "" {
		return nil, errors.New("an iframe url is required")
	}

	iframe, err := template.New(strings.ToLower(key) + "_usersync_url").Parse(iframeURL)
	if err != nil {
		return nil, fmt.Errorf("iframe: %v", err)
	}
	if err := validateTemplate(iframe); err != nil {
		return nil, fmt.Errorf("iframe: %v", err)
	}

	return standardSyncer{
		key:    key,
		iframe: iframe,
	}, nil
}

func validateTemplate(template *template.Template) error {
	url, err := macros.ResolveMacros(template, macros.UserSyncTemplateParams{PublisherID: "anyPublisherID"})
	if err != nil {
		return err
	}

	if !validator.IsURL(url) || !validator.IsRequestURL(url) {
		return fmt.Errorf("composed url \"%s\" is invalid", url)
	}
	return nil
}

func (s standardSyncer) Key() string {
	return s.key
}

func (s standardSyncer) SupportsType(syncTypes []SyncType) bool {
	for _, syncType := range syncTypes {
		if syncType == SyncTypeIFrame {
			return true
		}
	}
	return false
}

func (s standardSyncer) GetSync(syncTypes []SyncType, publisherID string) (Sync, error) {
	if !s.SupportsType(syncTypes) {
		return Sync{}, errors.New("no sync types provided are supported")
	}

	if publisherID == "" {
		publisherID = DefaultPublisherID
	}

	url, err := macros.ResolveMacros(s.iframe, macros.UserSyncTemplateParams{PublisherID: publisherID})
	if err != nil {
		return Sync{}, err
	}

	return Sync{
		Type: SyncTypeIFrame,
		URL:  url,
	}, nil
}
