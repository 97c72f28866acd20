package sitemap

import (
	"fmt"
	"os"
	"strings"
)

// CompletedShards lists the shard names already recorded under dir.
// A missing directory is an empty set, not an error. Dotfiles and files
// without the record suffix are ignored.
func CompletedShards(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("read record dir %s: %w", dir, err)
	}

	done := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		done[strings.TrimSuffix(name, recordSuffix)] = struct{}{}
	}
	return done, nil
}
