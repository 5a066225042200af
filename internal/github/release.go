package github

import (
	"path"
	"time"
)

// DefaultAssetGlob selects iOS application packages when a task does not
// override the pattern.
const DefaultAssetGlob = "*.ipa"

// Asset is a single downloadable release attachment.
type Asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is a published release as returned by the GitHub releases API.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Assets      []Asset   `json:"assets"`
}

// MatchAssets returns the assets whose file name matches the given
// filesystem-style glob, preserving upstream ordering. An empty or
// malformed pattern matches nothing.
func MatchAssets(assets []Asset, glob string) []Asset {
	if glob == "" {
		glob = DefaultAssetGlob
	}
	var matched []Asset
	for _, asset := range assets {
		ok, err := path.Match(glob, asset.Name)
		if err != nil {
			return nil
		}
		if ok {
			matched = append(matched, asset)
		}
	}
	return matched
}
