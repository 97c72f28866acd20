package sitemap

import (
	"errors"
	"fmt"
	"net/url"
	"path"
)

// recordSuffix is appended to a shard name to form its record filename.
const recordSuffix = ".txt"

// ErrInvalidShardURL reports a shard URL whose path has no final segment.
var ErrInvalidShardURL = errors.New("shard URL has no path segment")

// ShardName derives the filesystem name for a shard URL: the final segment
// of the URL path, used verbatim as the record filename stem. Names are
// expected to be unique across the shard set; duplicates silently share a
// record file.
func ShardName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse shard url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidShardURL, rawURL)
	}
	return name, nil
}
