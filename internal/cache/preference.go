package cache

// FailureThreshold is how many consecutive failures on a repo's preferred
// URL before pushcoord.WithUrlFallback should stop trying it first.
const FailureThreshold = 3

// PreferenceAdapter satisfies pushcoord.PreferenceSource over a
// MetadataStore, translating its success/failure bookkeeping into the
// preferred-URL-first, skip-if-recently-failed ordering pushcoord wants.
type PreferenceAdapter struct {
	store *MetadataStore
}

// NewPreferenceAdapter wraps store for use as a pushcoord.PreferenceSource.
func NewPreferenceAdapter(store *MetadataStore) *PreferenceAdapter {
	return &PreferenceAdapter{store: store}
}

// PreferredURL returns the last URL that succeeded for repoAddr, if any.
func (a *PreferenceAdapter) PreferredURL(repoAddr string) (string, bool) {
	p, err := a.store.GetURLPreference(repoAddr)
	if err != nil || p == nil || p.PreferredURL == "" {
		return "", false
	}
	return p.PreferredURL, true
}

// RecentlyFailed reports whether url is the repo's preferred URL and has
// failed enough consecutive times in a row to be deprioritized.
func (a *PreferenceAdapter) RecentlyFailed(repoAddr, url string) bool {
	p, err := a.store.GetURLPreference(repoAddr)
	if err != nil || p == nil {
		return false
	}
	return p.PreferredURL == url && p.FailureCount >= FailureThreshold
}
