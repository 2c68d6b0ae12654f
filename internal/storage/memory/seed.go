package memory

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"finze/internal/storage"
)

// NewStoreFromDir seeds the category list from <base>/seed_categories.txt
// when present.
func NewStoreFromDir(base string) *storage.Store {
	return NewStore(readLines(filepath.Join(base, "seed_categories.txt")))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
