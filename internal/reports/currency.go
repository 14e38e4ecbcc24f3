package reports

// CurrencyAdvisory returns a warning when an aggregation window mixes
// currencies. Sums are never converted. window qualifies the message, for
// example "this month"; it may be empty.
func CurrencyAdvisory(currencies []string, window string) string {
	distinct := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		distinct[c] = struct{}{}
	}
	if len(distinct) <= 1 {
		return ""
	}
	msg := "Multiple currencies detected"
	if window != "" {
		msg += " " + window
	}
	return msg + ". Totals are displayed without FX conversion."
}
