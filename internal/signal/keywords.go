package signal

import "strings"

// Keyword vocabularies scanned over provider text (search snippets, news
// headlines). Fraud keywords feed the online-activity category;
// regulatory keywords feed external factors.
var fraudKeywords = []string{
	"fraud",
	"scam",
	"ponzi",
	"pyramid scheme",
	"money laundering",
	"wire fraud",
	"securities fraud",
	"charged",
	"indicted",
	"convicted",
}

var regulatoryKeywords = []string{
	"enforcement",
	"violation",
	"penalty",
	"fine",
	"settlement",
	"lawsuit",
	"litigation",
	"bankruptcy",
}

// ScanKeywords returns the distinct fraud and regulatory keywords found
// in the given texts. Matching is case-insensitive substring matching,
// the same treatment the web-presence providers apply to snippets.
func ScanKeywords(texts []string) (fraud []string, regulatory []string) {
	foundFraud := make(map[string]struct{})
	foundReg := make(map[string]struct{})

	for _, text := range texts {
		lowered := strings.ToLower(text)
		for _, kw := range fraudKeywords {
			if strings.Contains(lowered, kw) {
				foundFraud[kw] = struct{}{}
			}
		}
		for _, kw := range regulatoryKeywords {
			if strings.Contains(lowered, kw) {
				foundReg[kw] = struct{}{}
			}
		}
	}

	for _, kw := range fraudKeywords {
		if _, ok := foundFraud[kw]; ok {
			fraud = append(fraud, kw)
		}
	}
	for _, kw := range regulatoryKeywords {
		if _, ok := foundReg[kw]; ok {
			regulatory = append(regulatory, kw)
		}
	}
	return fraud, regulatory
}
