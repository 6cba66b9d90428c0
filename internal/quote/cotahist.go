package quote

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Fixed-width layout of a COTAHIST quote record (zero-based, end exclusive).
const (
	minRecordLen    = 245
	recordTypeQuote = "01"
)

var (
	colRecordType = [2]int{0, 2}
	colBDI        = [2]int{10, 12}
	colTicker     = [2]int{12, 24}
	colMarketType = [2]int{24, 27}
	colClose      = [2]int{108, 121}
)

const (
	marketSpot       = 10
	marketFractional = 20
)

// CotahistProvider prices tickers from B3 COTAHIST daily files stored in Dir.
// File names end in the trading date: COTAHIST_D20250305.TXT. Files are
// searched newest first, skipping any dated after the reference date.
type CotahistProvider struct {
	Dir    string
	Logger *zap.Logger

	mu    sync.Mutex
	cache map[string]map[string]decimal.Decimal
}

type cotahistFile struct {
	path string
	date time.Time
}

func (p *CotahistProvider) Resolve(ctx context.Context, tickers []string, asOf time.Time) (map[string]decimal.Decimal, error) {
	keys := Keys(tickers)
	out := make(map[string]decimal.Decimal, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	files, err := p.filesUpTo(asOf)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no COTAHIST file up to %s in %s", asOf.Format(time.DateOnly), p.Dir)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prices, err := p.load(f.path)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := out[k]; ok {
				continue
			}
			if price, ok := prices[NormalizeTicker(k)]; ok {
				out[k] = price
			}
		}
		if len(out) == len(keys) {
			return out, nil
		}
	}

	missing := make([]string, 0, len(keys)-len(out))
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	return nil, &UnresolvedError{Tickers: missing, AsOf: asOf}
}

// filesUpTo lists eligible files newest first.
func (p *CotahistProvider) filesUpTo(asOf time.Time) ([]cotahistFile, error) {
	dir, err := filepath.Abs(p.Dir)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("quotes directory not found: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "COTAHIST_D*.TXT"))
	if err != nil {
		return nil, err
	}
	limit := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	files := make([]cotahistFile, 0, len(matches))
	for _, path := range matches {
		date, ok := fileDate(path)
		if !ok || date.After(limit) {
			continue
		}
		files = append(files, cotahistFile{path: path, date: date})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.After(files[j].date) })
	return files, nil
}

func fileDate(path string) (time.Time, bool) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(name) < 17 {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", name[len(name)-8:])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func (p *CotahistProvider) load(path string) (map[string]decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache[path]; ok {
		return cached, nil
	}
	prices, err := parseCotahist(path)
	if err != nil {
		return nil, err
	}
	if p.cache == nil {
		p.cache = map[string]map[string]decimal.Decimal{}
	}
	p.cache[path] = prices
	if p.Logger != nil {
		p.Logger.Info("cotahist file parsed", zap.String("file", filepath.Base(path)), zap.Int("tickers", len(prices)))
	}
	return prices, nil
}

func parseCotahist(path string) (map[string]decimal.Decimal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type entry struct {
		price    decimal.Decimal
		priority int
	}
	best := map[string]entry{}
	scanner := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(f))
	for scanner.Scan() {
		ticker, price, market, ok := parseRecord(scanner.Text())
		if !ok {
			continue
		}
		// Spot market wins over the fractional market for the same series.
		priority := 1
		if market == marketSpot {
			priority = 2
		}
		if cur, seen := best[ticker]; !seen || priority > cur.priority {
			best[ticker] = entry{price: price, priority: priority}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out := make(map[string]decimal.Decimal, len(best))
	for k, v := range best {
		out[k] = v.price
	}
	return out, nil
}

func parseRecord(line string) (ticker string, price decimal.Decimal, market int, ok bool) {
	// Company names carry accented characters; slice by rune, not byte.
	rec := []rune(line)
	if len(rec) < minRecordLen {
		return "", decimal.Zero, 0, false
	}
	field := func(col [2]int) string { return strings.TrimSpace(string(rec[col[0]:col[1]])) }

	if field(colRecordType) != recordTypeQuote {
		return "", decimal.Zero, 0, false
	}
	if bdi := field(colBDI); bdi != "02" && bdi != "96" {
		return "", decimal.Zero, 0, false
	}
	market, err := strconv.Atoi(field(colMarketType))
	if err != nil || (market != marketSpot && market != marketFractional) {
		return "", decimal.Zero, 0, false
	}
	ticker = NormalizeTicker(field(colTicker))
	if ticker == "" {
		return "", decimal.Zero, 0, false
	}
	cents, err := strconv.ParseInt(field(colClose), 10, 64)
	if err != nil || cents <= 0 {
		return "", decimal.Zero, 0, false
	}
	return ticker, decimal.New(cents, -2), market, true
}
