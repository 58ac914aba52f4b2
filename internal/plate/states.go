package plate

import "strings"

// usStates is scanned in order against raw OCR text; the first substring
// match wins. Order is the tie-break, so keep the table stable.
var usStates = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado",
	"Connecticut", "Delaware", "Florida", "Georgia", "Hawaii", "Idaho",
	"Illinois", "Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana", "Maine",
	"Maryland", "Massachusetts", "Michigan", "Minnesota", "Mississippi",
	"Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey",
	"New Mexico", "New York", "North Carolina", "North Dakota", "Ohio",
	"Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
	"South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia",
	"Washington", "West Virginia", "Wisconsin", "Wyoming",
}

// DetectState scans raw OCR text case-insensitively for a US state name.
// Returns nil when no state name appears.
func DetectState(rawText string) *string {
	upper := strings.ToUpper(rawText)
	for _, state := range usStates {
		if strings.Contains(upper, strings.ToUpper(state)) {
			s := state
			return &s
		}
	}
	return nil
}
