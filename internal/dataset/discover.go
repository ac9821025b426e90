package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// DiscoverShards returns paths to shard TAR files beneath root, sorted.
func DiscoverShards(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover shards: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}
