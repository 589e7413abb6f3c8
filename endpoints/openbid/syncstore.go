package openbid

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prebid/openbid/adapters"
	"github.com/prebid/openbid/openrtb_ext"
)

// SyncContextStore keeps the AuctionContext of each built request until the device asks for its
// user syncs. Every context is reachable through the auction id handed out by Save, and the
// latest context of each bidder also answers lookups which carry no id. Entries expire after
// the configured TTL.
type SyncContextStore struct {
	cache *cache.Cache
}

// NewSyncContextStore makes a store whose entries live for ttl. Expired entries are swept every
// cleanupInterval; a zero interval never sweeps.
func NewSyncContextStore(ttl, cleanupInterval time.Duration) *SyncContextStore {
	return &SyncContextStore{
		cache: cache.New(ttl, cleanupInterval),
	}
}

// Save stores the context and returns the id the device must present to fetch it.
func (s *SyncContextStore) Save(bidder openrtb_ext.BidderName, auction *adapters.AuctionContext) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate an auction id: %v", err)
	}
	s.cache.Set(syncContextKey(bidder, id.String()), *auction, cache.DefaultExpiration)
	s.cache.Set(syncContextKey(bidder, ""), *auction, cache.DefaultExpiration)
	return id.String(), nil
}

// Load returns the context saved under id for the bidder, or the bidder's latest one when id is
// empty. Contexts are never shared across bidders.
func (s *SyncContextStore) Load(bidder openrtb_ext.BidderName, id string) (*adapters.AuctionContext, bool) {
	value, ok := s.cache.Get(syncContextKey(bidder, id))
	if !ok {
		return nil, false
	}
	auction, ok := value.(adapters.AuctionContext)
	if !ok {
		return nil, false
	}
	return &auction, true
}

func syncContextKey(bidder openrtb_ext.BidderName, id string) string {
	if id == "" {
		return string(bidder) + "|latest"
	}
	return string(bidder) + "|" + id
}
