// Binary harvester builds the Google Play app id catalog from the store's
// sitemap hierarchy. It fetches the sharded sitemap parts with bounded
// concurrency, caches completed shards on disk so an interrupted run can
// resume, and merges the extracted identifiers into a single output file.
package main
