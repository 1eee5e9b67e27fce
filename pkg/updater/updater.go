// Package updater checks the project's release feed for a newer
// version than the running binary.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultReleaseURL is the GitHub latest-release endpoint queried when
// the operator does not override it.
const DefaultReleaseURL = "https://api.github.com/repos/vibehub/gateway/releases/latest"

// CheckResult reports the outcome of a release check.
type CheckResult struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version"`
	UpdateAvailable bool   `json:"update_available"`
	ReleaseURL      string `json:"release_url,omitempty"`
	AssetURL        string `json:"asset_url,omitempty"`
}

type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type release struct {
	TagName string         `json:"tag_name"`
	HTMLURL string         `json:"html_url"`
	Assets  []releaseAsset `json:"assets"`
}

// Updater queries a release feed.
type Updater struct {
	releaseURL     string
	currentVersion string
	client         *http.Client
}

// New creates an updater for the given release feed and running
// version.
func New(releaseURL, currentVersion string) *Updater {
	if releaseURL == "" {
		releaseURL = DefaultReleaseURL
	}
	return &Updater{
		releaseURL:     releaseURL,
		currentVersion: currentVersion,
		client:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Check fetches the latest release and compares it against the running
// version.
func (u *Updater) Check(ctx context.Context) (*CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.releaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release check returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to decode release response: %w", err)
	}

	result := &CheckResult{
		CurrentVersion:  u.currentVersion,
		LatestVersion:   rel.TagName,
		UpdateAvailable: newerVersion(rel.TagName, u.currentVersion),
		ReleaseURL:      rel.HTMLURL,
	}
	if result.UpdateAvailable {
		result.AssetURL = selectAsset(rel.Assets)
	}
	return result, nil
}

// newerVersion reports whether latest is strictly newer than current.
// Versions are compared as dotted integers after stripping a leading
// "v"; malformed segments compare as zero.
func newerVersion(latest, current string) bool {
	if latest == "" || current == "" {
		return false
	}
	lp := versionParts(latest)
	cp := versionParts(current)
	for i := 0; i < len(lp) || i < len(cp); i++ {
		l, c := 0, 0
		if i < len(lp) {
			l = lp[i]
		}
		if i < len(cp) {
			c = cp[i]
		}
		if l != c {
			return l > c
		}
	}
	return false
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	segments := strings.Split(v, ".")
	parts := make([]int, len(segments))
	for i, s := range segments {
		n, err := strconv.Atoi(s)
		if err != nil {
			n = 0
		}
		parts[i] = n
	}
	return parts
}

// selectAsset picks the release asset matching the running OS and
// architecture.
func selectAsset(assets []releaseAsset) string {
	want := runtime.GOOS + "-" + runtime.GOARCH
	wantAlt := runtime.GOOS + "_" + runtime.GOARCH
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, want) || strings.Contains(name, wantAlt) {
			return a.BrowserDownloadURL
		}
	}
	return ""
}
