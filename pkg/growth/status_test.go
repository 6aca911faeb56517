package growth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func result(label string, sev Severity) Result {
	return Result{Label: label, Severity: sev}
}

func TestResolveStatusPriority(t *testing.T) {
	normal := result(LabelNormalHeight, Normal)
	cases := []struct {
		name          string
		hfa, wfa, wfh Result
		want          string
	}{
		{"stunting danger first", result(LabelSeverelyStunted, Danger), result(LabelSeverelyUnderweight, Danger), result(LabelSeverelyWasted, Danger), LabelSeverelyStunted},
		{"wasting danger over underweight danger", result(LabelStunted, Warning), result(LabelSeverelyUnderweight, Danger), result(LabelSeverelyWasted, Danger), LabelSeverelyWasted},
		{"underweight danger over warnings", result(LabelStunted, Warning), result(LabelSeverelyUnderweight, Danger), result(LabelWasted, Warning), LabelSeverelyUnderweight},
		{"stunting warning", result(LabelStunted, Warning), result(LabelUnderweight, Warning), result(LabelWasted, Warning), LabelStunted},
		{"wasting warning", normal, result(LabelUnderweight, Warning), result(LabelWasted, Warning), LabelWasted},
		{"underweight warning", normal, result(LabelUnderweight, Warning), normal, LabelUnderweight},
		{"overweight risk", normal, normal, result(LabelOverweightRisk, Advisory), LabelOverweightRisk},
		{"overweight", normal, normal, result(LabelOverweight, Advisory), LabelOverweight},
		{"tall is not surfaced", result(LabelTall, Advisory), normal, normal, StatusGoodNutrition},
		{"heavy for age is not surfaced", normal, result(LabelOverweightRisk, Advisory), normal, StatusGoodNutrition},
		{"missing reference is not surfaced", normal, normal, noReference, StatusGoodNutrition},
		{"all normal", normal, normal, normal, StatusGoodNutrition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveStatus(tc.hfa, tc.wfa, tc.wfh))
		})
	}
}

// Every severity combination maps to exactly one rule and repeated calls agree.
func TestResolveStatusTotal(t *testing.T) {
	severities := []Severity{Danger, Warning, Normal, Advisory}
	for _, h := range severities {
		for _, a := range severities {
			for _, w := range severities {
				hfa := result("hfa-"+string(h), h)
				wfa := result("wfa-"+string(a), a)
				wfh := result(LabelOverweight, w)

				rule, label := resolve(hfa, wfa, wfh)
				again, same := resolve(hfa, wfa, wfh)
				assert.Equal(t, rule, again)
				assert.Equal(t, label, same)

				switch {
				case h == Danger:
					assert.Equal(t, 1, rule)
				case w == Danger:
					assert.Equal(t, 2, rule)
				case a == Danger:
					assert.Equal(t, 3, rule)
				case h == Warning:
					assert.Equal(t, 4, rule)
				case w == Warning:
					assert.Equal(t, 5, rule)
				case a == Warning:
					assert.Equal(t, 6, rule)
				case w == Advisory:
					assert.Equal(t, 7, rule)
				default:
					assert.Equal(t, 8, rule)
					assert.Equal(t, StatusGoodNutrition, label)
				}
				assert.NotEqual(t, "hfa-advisory", label)
				assert.NotEqual(t, "wfa-advisory", label)
			}
		}
	}
}
