package dropdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/shareledger/internal/source"
)

// Adapter implements the Source interface for a directory of XML exports.
// Only regular files directly inside the directory with an .xml extension
// (any case) are offered; subdirectories are not walked.
type Adapter struct {
	dir    string
	items  []source.FileItem
	loaded bool
}

// NewAdapter creates a new drop directory adapter.
// Parameters:
//   - dir: directory to scan.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(dir string) *Adapter {
	return &Adapter{dir: dir}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "dropdir:" + filepath.Base(a.dir)
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Drop directory (%s)", a.dir)
}

// FetchBatch fetches a batch of files from the directory.
// Parameters:
//   - ctx: context for cancellation and deadlines (unused for local reads).
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of items to fetch.
// Returns:
//   - []source.FileItem: batch of files, sorted by name.
//   - string: next cursor or empty if no more items.
//   - error: non-nil if the directory cannot be read.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.FileItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to scan drop directory: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if startIndex >= len(a.items) {
		return []source.FileItem{}, "", nil
	}
	if limit <= 0 {
		limit = len(a.items)
	}

	endIndex := startIndex + limit
	if endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

// Count returns the number of files the directory offers.
func (a *Adapter) Count() (int, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

func (a *Adapter) loadItems() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return err
	}

	a.items = []source.FileItem{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsXMLName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		a.items = append(a.items, source.FileItem{
			SourceID:  entry.Name(),
			Name:      entry.Name(),
			LocalPath: filepath.Join(a.dir, entry.Name()),
			Size:      info.Size(),
		})
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].Name < a.items[j].Name
	})
	return nil
}

// IsXMLName reports whether the last dot segment of name is "xml", ignoring case.
func IsXMLName(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	return strings.EqualFold(name[idx+1:], "xml")
}
