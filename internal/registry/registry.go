// Package registry loads the institutions an investigation runs against.
package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/model"
)

// ErrNotFound is returned when the institution source does not exist
var ErrNotFound = errors.New("institution source not found")

// Options describes the CSV layout of an institution source
type Options struct {
	Delimiter      rune
	CategoryColumn string
	Category       string // exact match after trimming; empty keeps every row
	NameColumn     string
	SiteColumn     string
}

// DefaultOptions matches the German university list layout
func DefaultOptions() Options {
	return Options{
		Delimiter:      ',',
		CategoryColumn: "Hochschultyp",
		Category:       "Universität",
		NameColumn:     "Hochschulname",
		SiteColumn:     "website",
	}
}

// OptionsFromConfig converts model.RegistryConfig to Options
func OptionsFromConfig(cfg model.RegistryConfig) Options {
	opts := DefaultOptions()
	if cfg.Delimiter != "" {
		if r, _ := utf8.DecodeRuneInString(cfg.Delimiter); r != utf8.RuneError {
			opts.Delimiter = r
		}
	}
	if cfg.CategoryColumn != "" {
		opts.CategoryColumn = cfg.CategoryColumn
	}
	opts.Category = cfg.Category
	if cfg.NameColumn != "" {
		opts.NameColumn = cfg.NameColumn
	}
	if cfg.SiteColumn != "" {
		opts.SiteColumn = cfg.SiteColumn
	}
	return opts
}

// Load reads institutions from the CSV file at path
func Load(path string, opts Options, logger *zap.Logger) ([]model.Institution, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open institutions: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f, opts, logger)
}

// Read parses institutions from CSV content. Rows outside the category are
// dropped, rows without a name or site are skipped with a warning, and
// duplicate names keep the last row's site at the first row's position.
func Read(r io.Reader, opts Options, logger *zap.Logger) ([]model.Institution, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		index[strings.TrimSpace(h)] = i
	}

	for _, col := range []string{opts.NameColumn, opts.SiteColumn} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	if _, ok := index[opts.CategoryColumn]; !ok && opts.Category != "" {
		return nil, fmt.Errorf("missing required column %q", opts.CategoryColumn)
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var order []string
	byName := make(map[string]model.Institution)

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.Warn("skipping malformed institution row",
				zap.Int("line", parseErr.StartLine),
				zap.Error(parseErr.Err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		if opts.Category != "" && field(row, opts.CategoryColumn) != opts.Category {
			continue
		}

		name := field(row, opts.NameColumn)
		site := field(row, opts.SiteColumn)
		if name == "" || site == "" {
			logger.Warn("skipping institution row with missing field",
				zap.Int("line", line),
				zap.String("name", name),
				zap.String("site", site))
			continue
		}

		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = model.Institution{Name: name, Site: NormalizeSite(site)}
	}

	institutions := make([]model.Institution, 0, len(order))
	for _, name := range order {
		institutions = append(institutions, byName[name])
	}

	logger.Debug("loaded institutions", zap.Int("count", len(institutions)))
	return institutions, nil
}

// NormalizeSite strips the scheme, a leading "www." and trailing slashes
func NormalizeSite(site string) string {
	site = strings.TrimSpace(site)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(site, scheme) {
			site = site[len(scheme):]
			break
		}
	}
	site = strings.TrimPrefix(site, "www.")
	return strings.TrimRight(site, "/")
}

// Index maps institution names to institutions
func Index(institutions []model.Institution) map[string]model.Institution {
	idx := make(map[string]model.Institution, len(institutions))
	for _, inst := range institutions {
		idx[inst.Name] = inst
	}
	return idx
}

// Names returns institution names in load order
func Names(institutions []model.Institution) []string {
	names := make([]string, len(institutions))
	for i, inst := range institutions {
		names[i] = inst.Name
	}
	return names
}
