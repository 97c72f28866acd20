package sitemap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/playcatalog/harvester/internal/metrics"
)

// FetchStage identifies which step of the shard pipeline failed.
type FetchStage string

const (
	StageNetwork    FetchStage = "network"
	StageDecompress FetchStage = "decompress"
	StageParse      FetchStage = "parse"
	StageMalformed  FetchStage = "malformed_entry"
	StagePersist    FetchStage = "persist"
)

// FetchError reports a failed shard together with the pipeline stage that
// failed. The shard's record file is guaranteed absent when one is returned.
type FetchError struct {
	URL   string
	Stage FetchStage
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("shard %s: %s: %v", e.URL, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ByteFetcher retrieves the raw bytes behind a URL with a single attempt.
type ByteFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetcher downloads one sitemap shard, extracts the app ids it lists and
// persists them as the shard's record.
type Fetcher struct {
	client     ByteFetcher
	recordDir  string
	linkPrefix string
	logger     *zap.Logger
}

// NewFetcher builds a Fetcher writing records under recordDir. Only
// hyperlinks starting with linkPrefix contribute identifiers.
func NewFetcher(client ByteFetcher, recordDir, linkPrefix string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:     client,
		recordDir:  recordDir,
		linkPrefix: linkPrefix,
		logger:     logger,
	}
}

// Process runs the shard pipeline end to end: fetch, decompress, parse,
// extract, persist. On success exactly one record file exists for the
// shard; on any failure none does.
func (f *Fetcher) Process(ctx context.Context, shardURL string) error {
	name, err := ShardName(shardURL)
	if err != nil {
		return err
	}
	target := filepath.Join(f.recordDir, name+recordSuffix)

	start := time.Now()
	ids, err := f.extract(ctx, shardURL)
	if err != nil {
		return err
	}

	if err := writeRecord(target, ids); err != nil {
		return &FetchError{URL: shardURL, Stage: StagePersist, Err: err}
	}

	metrics.AddAppIDs(len(ids))
	metrics.ObserveShardFetch(time.Since(start))
	f.logger.Debug("shard recorded",
		zap.String("shard", name),
		zap.Int("app_ids", len(ids)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (f *Fetcher) extract(ctx context.Context, shardURL string) ([]string, error) {
	raw, err := f.client.Fetch(ctx, shardURL)
	if err != nil {
		return nil, &FetchError{URL: shardURL, Stage: StageNetwork, Err: err}
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &FetchError{URL: shardURL, Stage: StageDecompress, Err: err}
	}
	body, err := io.ReadAll(zr)
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, &FetchError{URL: shardURL, Stage: StageDecompress, Err: err}
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: shardURL, Stage: StageParse, Err: err}
	}

	ids := make([]string, 0, 64)
	for _, link := range collectHrefs(doc) {
		if !strings.HasPrefix(link, f.linkPrefix) {
			continue
		}
		id, err := appID(link)
		if err != nil {
			// One malformed product link fails the whole shard; records
			// are all-or-nothing.
			return nil, &FetchError{URL: shardURL, Stage: StageMalformed, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// collectHrefs gathers every href attribute in the document, de-duplicated
// in first-seen document order.
func collectHrefs(doc *xmlquery.Node) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, node := range xmlquery.Find(doc, "//*[@href]") {
		href := node.SelectAttr("href")
		if href == "" {
			continue
		}
		if _, ok := seen[href]; ok {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, href)
	}
	return links
}

// appID extracts the first id query value of a product link.
func appID(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse product link: %w", err)
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", fmt.Errorf("product link %s has no id parameter", link)
	}
	return id, nil
}

// writeRecord persists ids one per line. Any failure removes the partial
// file before returning, so a record is never observable half-written.
func writeRecord(target string, ids []string) error {
	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create record %s: %w", target, err)
	}

	w := bufio.NewWriter(file)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			return discardRecord(file, target, fmt.Errorf("write record %s: %w", target, err))
		}
	}
	if err := w.Flush(); err != nil {
		return discardRecord(file, target, fmt.Errorf("flush record %s: %w", target, err))
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("close record %s: %w", target, err)
	}
	return nil
}

func discardRecord(file *os.File, target string, err error) error {
	_ = file.Close()
	_ = os.Remove(target)
	return err
}
