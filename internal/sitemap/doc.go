// Package sitemap implements the resumable shard fetch pipeline: shard URL
// discovery, bounded-concurrency fetching with per-shard on-disk records,
// and the deterministic merge of those records into the catalog file.
//
// A shard is one gzip-compressed XML part of the store's sitemap hierarchy.
// Its record (<name>.txt, one app id per line) is written only when the
// whole shard processed successfully, so the presence of the file is the
// single source of truth that the shard is done. Workers write disjoint
// files, which keeps the pipeline lock-free.
package sitemap
