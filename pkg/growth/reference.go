// Package growth classifies anthropometric measurements against growth
// reference tables. Everything here is pure and safe for concurrent use once
// the tables are loaded.
package growth

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/growthwatch/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

//go:embed reference_data.yaml
var defaultReferenceData []byte

var ErrNoReference = errors.New("no reference data")

type Indicator string

const (
	HeightForAge    Indicator = "height_for_age"
	WeightForAge    Indicator = "weight_for_age"
	WeightForHeight Indicator = "weight_for_height"
)

const (
	MinAgeMonths = 0
	MaxAgeMonths = 60
)

// Thresholds are the standard-deviation cut-offs of one reference row.
// SD1Pos is only meaningful for weight-for-height.
type Thresholds struct {
	SD3Neg float64 `yaml:"sd3neg"`
	SD2Neg float64 `yaml:"sd2neg"`
	SD1Pos float64 `yaml:"sd1pos"`
	SD2Pos float64 `yaml:"sd2pos"`
}

type ageRow struct {
	Month      int `yaml:"month"`
	Thresholds `yaml:",inline"`
}

type heightRow struct {
	Height     float64 `yaml:"height"`
	Thresholds `yaml:",inline"`
}

type tableFile struct {
	HeightForAge    map[models.Gender][]ageRow    `yaml:"height_for_age"`
	WeightForAge    map[models.Gender][]ageRow    `yaml:"weight_for_age"`
	WeightForHeight map[models.Gender][]heightRow `yaml:"weight_for_height"`
}

// Tables is the immutable, process-wide reference store.
type Tables struct {
	byAge    map[Indicator]map[models.Gender]map[int]Thresholds
	byHeight map[models.Gender][]heightRow
}

var (
	defaultTables     *Tables
	defaultTablesOnce sync.Once
)

// DefaultTables returns the tables compiled into the binary.
func DefaultTables() *Tables {
	defaultTablesOnce.Do(func() {
		tables, err := ParseTables(defaultReferenceData)
		if err != nil {
			panic(fmt.Sprintf("embedded reference data is invalid: %v", err))
		}
		defaultTables = tables
	})
	return defaultTables
}

// LoadTables reads a reference file; an empty path selects the embedded tables.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read reference tables: %w", err)
	}
	return ParseTables(content)
}

func ParseTables(data []byte) (*Tables, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse reference tables: %w", err)
	}

	t := &Tables{
		byAge:    make(map[Indicator]map[models.Gender]map[int]Thresholds),
		byHeight: make(map[models.Gender][]heightRow),
	}
	for indicator, source := range map[Indicator]map[models.Gender][]ageRow{
		HeightForAge: file.HeightForAge,
		WeightForAge: file.WeightForAge,
	} {
		perGender := make(map[models.Gender]map[int]Thresholds)
		for gender, rows := range source {
			if !gender.Valid() {
				return nil, fmt.Errorf("%s: unknown gender %q", indicator, gender)
			}
			byMonth := make(map[int]Thresholds, len(rows))
			for _, row := range rows {
				if row.Month < MinAgeMonths || row.Month > MaxAgeMonths {
					return nil, fmt.Errorf("%s/%s: month %d outside %d..%d", indicator, gender, row.Month, MinAgeMonths, MaxAgeMonths)
				}
				if _, dup := byMonth[row.Month]; dup {
					return nil, fmt.Errorf("%s/%s: duplicate month %d", indicator, gender, row.Month)
				}
				if !(row.SD3Neg <= row.SD2Neg && row.SD2Neg <= row.SD2Pos) {
					return nil, fmt.Errorf("%s/%s: month %d thresholds out of order", indicator, gender, row.Month)
				}
				byMonth[row.Month] = row.Thresholds
			}
			perGender[gender] = byMonth
		}
		t.byAge[indicator] = perGender
	}

	for gender, rows := range file.WeightForHeight {
		if !gender.Valid() {
			return nil, fmt.Errorf("%s: unknown gender %q", WeightForHeight, gender)
		}
		sorted := make([]heightRow, len(rows))
		copy(sorted, rows)
		for _, row := range sorted {
			if row.Height <= 0 {
				return nil, fmt.Errorf("%s/%s: non-positive height %.1f", WeightForHeight, gender, row.Height)
			}
			if !(row.SD3Neg <= row.SD2Neg && row.SD2Neg <= row.SD1Pos && row.SD1Pos <= row.SD2Pos) {
				return nil, fmt.Errorf("%s/%s: height %.1f thresholds out of order", WeightForHeight, gender, row.Height)
			}
		}
		// Canonical order is ascending height; equal heights keep file order.
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Height < sorted[j].Height })
		t.byHeight[gender] = sorted
	}
	return t, nil
}

// Lookup returns the thresholds for one indicator. Age-based indicators use
// ageMonths clamped into [0, 60]; weight-for-height uses the row nearest to
// heightCm, the lower (earlier) row winning a tie.
func (t *Tables) Lookup(indicator Indicator, gender models.Gender, ageMonths int, heightCm float64) (Thresholds, error) {
	switch indicator {
	case HeightForAge, WeightForAge:
		return t.lookupAge(indicator, gender, ageMonths)
	case WeightForHeight:
		return t.lookupHeight(gender, heightCm)
	default:
		return Thresholds{}, fmt.Errorf("%w: unknown indicator %q", ErrNoReference, indicator)
	}
}

func (t *Tables) lookupAge(indicator Indicator, gender models.Gender, ageMonths int) (Thresholds, error) {
	month := ClampAge(ageMonths)
	row, ok := t.byAge[indicator][gender][month]
	if !ok {
		return Thresholds{}, fmt.Errorf("%w: %s/%s month %d", ErrNoReference, indicator, gender, month)
	}
	return row, nil
}

func (t *Tables) lookupHeight(gender models.Gender, heightCm float64) (Thresholds, error) {
	rows := t.byHeight[gender]
	i := nearestIndex(rows, heightCm)
	if i < 0 {
		return Thresholds{}, fmt.Errorf("%w: %s/%s height %.1f", ErrNoReference, WeightForHeight, gender, heightCm)
	}
	return rows[i].Thresholds, nil
}

// NearestHeight reports the table height Lookup would use for heightCm.
func (t *Tables) NearestHeight(gender models.Gender, heightCm float64) (float64, bool) {
	rows := t.byHeight[gender]
	i := nearestIndex(rows, heightCm)
	if i < 0 {
		return 0, false
	}
	return rows[i].Height, true
}

func nearestIndex(rows []heightRow, heightCm float64) int {
	best := -1
	bestDiff := math.Inf(1)
	for i, row := range rows {
		// strict comparison keeps the first row on ties; NaN never matches
		if diff := math.Abs(row.Height - heightCm); diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best
}

func ClampAge(ageMonths int) int {
	if ageMonths < MinAgeMonths {
		return MinAgeMonths
	}
	if ageMonths > MaxAgeMonths {
		return MaxAgeMonths
	}
	return ageMonths
}
