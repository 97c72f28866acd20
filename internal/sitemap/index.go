package sitemap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
)

// sitemapLinePrefix marks sitemap index declarations in robots.txt.
const sitemapLinePrefix = "Sitemap:"

// Resolver supplies the full set of sitemap shard URLs for a run, either
// from the cached list or by walking robots.txt and the sitemap indexes.
type Resolver struct {
	client    ByteFetcher
	robotsURL string
	cachePath string
	logger    *zap.Logger
}

// NewResolver builds a Resolver. The cache file at cachePath is trusted
// as-is when it exists.
func NewResolver(client ByteFetcher, robotsURL, cachePath string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:    client,
		robotsURL: robotsURL,
		cachePath: cachePath,
		logger:    logger,
	}
}

// ShardURLs returns the cached shard URL list when present, otherwise
// discovers it live and persists the sorted result for the next run.
func (r *Resolver) ShardURLs(ctx context.Context) ([]string, error) {
	cached, err := r.readCache()
	if err != nil {
		return nil, err
	}
	if cached != nil {
		r.logger.Info("loaded shard urls from cache",
			zap.Int("count", len(cached)),
			zap.String("path", r.cachePath),
		)
		return cached, nil
	}

	indexURLs, err := r.sitemapIndexURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read robots %s: %w", r.robotsURL, err)
	}
	r.logger.Info("discovered sitemap indexes", zap.Int("count", len(indexURLs)))

	set := make(map[string]struct{})
	for _, indexURL := range indexURLs {
		locs, err := r.locEntries(ctx, indexURL)
		if err != nil {
			return nil, fmt.Errorf("read sitemap index %s: %w", indexURL, err)
		}
		for _, loc := range locs {
			set[loc] = struct{}{}
		}
	}

	urls := make([]string, 0, len(set))
	for u := range set {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	if err := r.writeCache(urls); err != nil {
		return nil, err
	}
	r.logger.Info("shard urls resolved and cached",
		zap.Int("count", len(urls)),
		zap.String("path", r.cachePath),
	)
	return urls, nil
}

// readCache returns nil with no error when the cache file does not exist.
func (r *Resolver) readCache() ([]string, error) {
	raw, err := os.ReadFile(r.cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sitemap cache %s: %w", r.cachePath, err)
	}

	var urls []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			urls = append(urls, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan sitemap cache %s: %w", r.cachePath, err)
	}
	return urls, nil
}

func (r *Resolver) writeCache(urls []string) error {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(r.cachePath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write sitemap cache %s: %w", r.cachePath, err)
	}
	return nil
}

// sitemapIndexURLs collects the Sitemap: declarations from robots.txt.
func (r *Resolver) sitemapIndexURLs(ctx context.Context) ([]string, error) {
	raw, err := r.client.Fetch(ctx, r.robotsURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, sitemapLinePrefix) {
			continue
		}
		if u := strings.TrimSpace(line[len(sitemapLinePrefix):]); u != "" {
			urls = append(urls, u)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan robots body: %w", err)
	}
	return urls, nil
}

// locEntries extracts the <loc> entries of one sitemap index document.
func (r *Resolver) locEntries(ctx context.Context, indexURL string) ([]string, error) {
	raw, err := r.client.Fetch(ctx, indexURL)
	if err != nil {
		return nil, err
	}

	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse index xml: %w", err)
	}

	var locs []string
	for _, node := range xmlquery.Find(doc, "//loc") {
		if text := strings.TrimSpace(node.InnerText()); text != "" {
			locs = append(locs, text)
		}
	}
	return locs, nil
}
