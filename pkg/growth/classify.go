package growth

import (
	"errors"

	"github.com/growthwatch/platform/pkg/common/logger"
	"github.com/growthwatch/platform/pkg/common/models"
)

type Severity string

const (
	Danger   Severity = "danger"
	Warning  Severity = "warning"
	Normal   Severity = "normal"
	Advisory Severity = "advisory"
)

const (
	LabelSeverelyStunted     = "Severely Stunted"
	LabelStunted             = "Stunted"
	LabelNormalHeight        = "Normal"
	LabelTall                = "Tall"
	LabelSeverelyUnderweight = "Severely Underweight"
	LabelUnderweight         = "Underweight"
	LabelNormalWeight        = "Normal weight"
	LabelOverweightRisk      = "Overweight risk"
	LabelSeverelyWasted      = "Severely Wasted"
	LabelWasted              = "Wasted"
	LabelNormalProportion    = "Normal"
	LabelOverweight          = "Overweight"
	LabelNoReference         = "No reference data"
)

// Approximate z-scores attached to each bucket. They mark severity only and
// are not interpolated from the reference distribution.
const (
	zSevere     = -3.1
	zModerate   = -2.1
	zNormal     = 0.0
	zRiskHigh   = 1.1
	zAboveRange = 2.1
)

type Result struct {
	Label    string
	Severity Severity
	ApproxZ  float64
}

// HasReference is false when the inputs fell outside the reference tables.
func (r Result) HasReference() bool {
	return r.Label != LabelNoReference
}

// ZScore returns nil for results without reference data.
func (r Result) ZScore() *float64 {
	if !r.HasReference() {
		return nil
	}
	z := r.ApproxZ
	return &z
}

func (r Result) Summary() models.IndicatorResult {
	return models.IndicatorResult{Label: r.Label, Severity: string(r.Severity), ApproxZ: r.ApproxZ}
}

var noReference = Result{Label: LabelNoReference, Severity: Advisory, ApproxZ: zNormal}

type ageLabels struct {
	severe, moderate, normal, above string
}

var (
	heightForAgeLabels = ageLabels{LabelSeverelyStunted, LabelStunted, LabelNormalHeight, LabelTall}
	weightForAgeLabels = ageLabels{LabelSeverelyUnderweight, LabelUnderweight, LabelNormalWeight, LabelOverweightRisk}
)

// Classifier binds the three indicator classifiers to one reference store.
type Classifier struct {
	tables *Tables
}

func NewClassifier(tables *Tables) *Classifier {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Classifier{tables: tables}
}

func (c *Classifier) HeightForAge(gender models.Gender, ageMonths int, heightCm float64) Result {
	th, err := c.tables.Lookup(HeightForAge, gender, ageMonths, 0)
	if err != nil {
		return softFail(err)
	}
	return bucketByAge(heightCm, th, heightForAgeLabels)
}

func (c *Classifier) WeightForAge(gender models.Gender, ageMonths int, weightKg float64) Result {
	th, err := c.tables.Lookup(WeightForAge, gender, ageMonths, 0)
	if err != nil {
		return softFail(err)
	}
	return bucketByAge(weightKg, th, weightForAgeLabels)
}

func (c *Classifier) WeightForHeight(gender models.Gender, heightCm, weightKg float64) Result {
	th, err := c.tables.Lookup(WeightForHeight, gender, 0, heightCm)
	if err != nil {
		return softFail(err)
	}
	switch {
	case weightKg < th.SD3Neg:
		return Result{Label: LabelSeverelyWasted, Severity: Danger, ApproxZ: zSevere}
	case weightKg < th.SD2Neg:
		return Result{Label: LabelWasted, Severity: Warning, ApproxZ: zModerate}
	case weightKg <= th.SD1Pos:
		return Result{Label: LabelNormalProportion, Severity: Normal, ApproxZ: zNormal}
	case weightKg <= th.SD2Pos:
		return Result{Label: LabelOverweightRisk, Severity: Advisory, ApproxZ: zRiskHigh}
	default:
		return Result{Label: LabelOverweight, Severity: Advisory, ApproxZ: zAboveRange}
	}
}

func bucketByAge(value float64, th Thresholds, labels ageLabels) Result {
	switch {
	case value < th.SD3Neg:
		return Result{Label: labels.severe, Severity: Danger, ApproxZ: zSevere}
	case value < th.SD2Neg:
		return Result{Label: labels.moderate, Severity: Warning, ApproxZ: zModerate}
	case value <= th.SD2Pos:
		return Result{Label: labels.normal, Severity: Normal, ApproxZ: zNormal}
	default:
		return Result{Label: labels.above, Severity: Advisory, ApproxZ: zAboveRange}
	}
}

func softFail(err error) Result {
	if !errors.Is(err, ErrNoReference) {
		logger.Log.WithError(err).Warn("Reference lookup failed")
	} else {
		logger.Log.WithError(err).Debug("Reference lookup missed")
	}
	return noReference
}

// Assessment is the full classification of one measurement.
type Assessment struct {
	AgeMonths       int
	HeightForAge    Result
	WeightForAge    Result
	WeightForHeight Result
	Status          string
}

func (c *Classifier) Assess(gender models.Gender, ageMonths int, weightKg, heightCm float64) Assessment {
	a := Assessment{
		AgeMonths:       ageMonths,
		HeightForAge:    c.HeightForAge(gender, ageMonths, heightCm),
		WeightForAge:    c.WeightForAge(gender, ageMonths, weightKg),
		WeightForHeight: c.WeightForHeight(gender, heightCm, weightKg),
	}
	a.Status = ResolveStatus(a.HeightForAge, a.WeightForAge, a.WeightForHeight)
	return a
}

func (a Assessment) Summary() *models.IndicatorSummary {
	return &models.IndicatorSummary{
		HeightForAge:    a.HeightForAge.Summary(),
		WeightForAge:    a.WeightForAge.Summary(),
		WeightForHeight: a.WeightForHeight.Summary(),
		AgeMonths:       a.AgeMonths,
	}
}
