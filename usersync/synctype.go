package usersync

// SyncType names how the device runs a sync URL.
type SyncType string

const (
	SyncTypeUnknown SyncType = ""
	// SyncTypeIFrame loads the URL in a hidden iframe which runs the bidder's sync page.
	SyncTypeIFrame SyncType = "iframe"
	// SyncTypeRedirect loads the URL as an image pixel which answers with a 302.
	SyncTypeRedirect SyncType = "redirect"
)

// AllowedSyncTypes lists the sync types a device accepts. Image pixels are always accepted;
// iframes only when the host enables them.
func AllowedSyncTypes(iframeEnabled bool) []SyncType {
	if iframeEnabled {
		return []SyncType{SyncTypeIFrame, SyncTypeRedirect}
	}
	return []SyncType{SyncTypeRedirect}
}
