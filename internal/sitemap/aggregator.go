package sitemap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// MergeError reports a failed merge of shard records. The output path is
// left absent, so retrying on the next run is always safe.
type MergeError struct {
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge records: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// Merge concatenates every shard record under dir into outputPath, in
// lexicographic filename order, streaming record by record. When the
// output already exists the merge is a no-op: the file is only ever
// produced once per run. The output is written to a temporary path and
// renamed into place after full success, so a partially merged file never
// passes the existence check.
func Merge(dir, outputPath string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(outputPath); err == nil {
		logger.Info("output already exists, skipping merge", zap.String("path", outputPath))
		return nil
	} else if !os.IsNotExist(err) {
		return &MergeError{Err: fmt.Errorf("stat output %s: %w", outputPath, err)}
	}

	// os.ReadDir returns entries sorted by filename, which fixes the
	// merge order independently of fetch completion order.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &MergeError{Err: fmt.Errorf("read record dir %s: %w", dir, err)}
	}

	tmpPath := outputPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return &MergeError{Err: fmt.Errorf("create %s: %w", tmpPath, err)}
	}

	records := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		if err := appendRecord(out, filepath.Join(dir, name)); err != nil {
			_ = out.Close()
			_ = os.Remove(tmpPath)
			return &MergeError{Err: err}
		}
		records++
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &MergeError{Err: fmt.Errorf("close %s: %w", tmpPath, err)}
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return &MergeError{Err: fmt.Errorf("rename %s: %w", tmpPath, err)}
	}

	logger.Info("merged shard records",
		zap.Int("records", records),
		zap.String("path", outputPath),
	)
	return nil
}

func appendRecord(dst io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open record %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return fmt.Errorf("copy record %s: %w", path, err)
	}
	return nil
}
