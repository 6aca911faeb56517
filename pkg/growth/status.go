package growth

const StatusGoodNutrition = "Good Nutrition (Normal)"

// ResolveStatus picks the single label shown for a measurement. Danger beats
// Warning, and within a severity stunting beats wasting beats underweight.
// Advisory height-for-age and weight-for-age results are never surfaced.
func ResolveStatus(hfa, wfa, wfh Result) string {
	_, label := resolve(hfa, wfa, wfh)
	return label
}

// resolve also reports which priority rule (1-8) produced the label.
func resolve(hfa, wfa, wfh Result) (int, string) {
	switch {
	case hfa.Severity == Danger:
		return 1, hfa.Label
	case wfh.Severity == Danger:
		return 2, wfh.Label
	case wfa.Severity == Danger:
		return 3, wfa.Label
	case hfa.Severity == Warning:
		return 4, hfa.Label
	case wfh.Severity == Warning:
		return 5, wfh.Label
	case wfa.Severity == Warning:
		return 6, wfa.Label
	case wfh.Severity == Advisory && isOverweightBucket(wfh.Label):
		return 7, wfh.Label
	default:
		return 8, StatusGoodNutrition
	}
}

func isOverweightBucket(label string) bool {
	return label == LabelOverweightRisk || label == LabelOverweight
}
