package query

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SortLocations returns locs without duplicates, ordered by file and then
// numerically by line and column.
func SortLocations(locs []string) []string {
	type key struct {
		file      string
		line, col int
		raw       string
	}
	keys := make([]key, 0, len(locs))
	for _, l := range dedup(locs) {
		k := key{raw: l, file: l}
		if file, locus, err := ParseLocation(l); err == nil {
			k.file = file
			k.line, k.col = splitLocus(locus)
		}
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.file != b.file {
			return a.file < b.file
		}
		if a.line != b.line {
			return a.line < b.line
		}
		return a.col < b.col
	})

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.raw
	}
	return out
}

func splitLocus(locus string) (line, col int) {
	l, c, _ := strings.Cut(locus, ":")
	line, _ = strconv.Atoi(l)
	col, _ = strconv.Atoi(c)
	return line, col
}

// LocationWithText renders a File-Locus Key as an absolute
// "path:line:column:text" line, with the source line it points at.
func LocationWithText(location, baseDir string) (string, error) {
	file, locus, err := ParseLocation(location)
	if err != nil {
		return "", err
	}
	line, col := splitLocus(locus)

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, file)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	text := ""
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		if n == line {
			text = scanner.Text()
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return fmt.Sprintf("%s:%d:%d:%s", path, line, col, strings.TrimRight(text, " \t\r")), nil
}
