package taxonomy

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/logger"
)

// DefaultMinEntries is the smallest catalog accepted as a complete load.
const DefaultMinEntries = 20

// ErrCatalogTooSmall is returned when the source yields fewer entries than the
// configured minimum, which usually means a truncated or empty file.
var ErrCatalogTooSmall = errors.New("capability catalog is implausibly small")

//go:embed catalog.csv
var embeddedCatalog []byte

// bannerPattern matches the title banner and the column header rows.
var bannerPattern = regexp.MustCompile(`(?i)\b(catalog(ue)?|taxonomy|capabilit(y|ies)|category|categories)\b`)

// Entry is one offered service.
type Entry struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	ServiceName    string `json:"serviceName"`
	NormalizedText string `json:"normalizedText"`
}

// Loader reads the catalog once and serves the cached copy afterwards.
// Failed loads are not cached.
type Loader struct {
	path       string
	minEntries int
	logger     *zap.Logger

	mu      sync.Mutex
	entries []Entry
	version string
}

// NewLoader creates a loader for the CSV file at path. An empty path selects
// the embedded catalog.
func NewLoader(path string, minEntries int, l *zap.Logger) *Loader {
	if minEntries <= 0 {
		minEntries = DefaultMinEntries
	}
	return &Loader{
		path:       strings.TrimSpace(path),
		minEntries: minEntries,
		logger:     logger.OrNop(l),
	}
}

// Load returns the catalog. The returned slice is shared and must not be modified.
func (l *Loader) Load() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries != nil {
		return l.entries, nil
	}

	raw, err := l.read()
	if err != nil {
		return nil, err
	}

	entries, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse capability catalog: %w", err)
	}

	if len(entries) < l.minEntries {
		return nil, fmt.Errorf("%w: %d entries, want at least %d", ErrCatalogTooSmall, len(entries), l.minEntries)
	}

	l.entries = entries
	l.version = Fingerprint(entries)

	l.logger.Info("capability catalog loaded",
		zap.Int("entries", len(entries)),
		zap.String("taxonomy_version", l.version),
		zap.String("source", l.sourceName()),
	)

	return l.entries, nil
}

// Version returns the fingerprint of the loaded catalog, loading it if needed.
func (l *Loader) Version() (string, error) {
	if _, err := l.Load(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version, nil
}

// Reset drops the cached catalog.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.version = ""
}

func (l *Loader) read() ([]byte, error) {
	if l.path == "" {
		return embeddedCatalog, nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read capability catalog %q: %w", l.path, err)
	}
	return data, nil
}

func (l *Loader) sourceName() string {
	if l.path == "" {
		return "embedded"
	}
	return l.path
}

// Parse reads (category, service) rows. A blank category repeats the previous
// one, blank service cells are skipped, and the banner/header rows at the top
// are dropped.
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		entries  []Entry
		category string
		row      int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row++

		if row <= 2 && bannerPattern.MatchString(strings.Join(record, " ")) {
			continue
		}

		cellCategory := ""
		cellService := ""
		if len(record) > 0 {
			cellCategory = collapse(record[0])
		}
		if len(record) > 1 {
			cellService = collapse(record[1])
		}

		if cellCategory != "" {
			category = cellCategory
		}
		if cellService == "" || category == "" {
			continue
		}

		entries = append(entries, Entry{
			ID:             fmt.Sprintf("svc-%03d", len(entries)+1),
			Category:       category,
			ServiceName:    cellService,
			NormalizedText: Normalize(cellService),
		})
	}

	return entries, nil
}

// Fingerprint hashes the category:service pairs in catalog order.
func Fingerprint(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s:%s\n", e.Category, e.ServiceName)
	}
	return fmt.Sprintf("tx-%x", h.Sum(nil)[:8])
}

// FindService returns the entry whose service name normalizes to the same text as name.
func FindService(entries []Entry, name string) (Entry, bool) {
	key := Normalize(name)
	if key == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.NormalizedText == key {
			return e, true
		}
	}
	return Entry{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
