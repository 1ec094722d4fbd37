package model

// Category classifies a patient document. The set is closed; uploads carrying
// an unknown category are rejected at the HTTP boundary.
type Category string

const (
	CategoryLabResults    Category = "lab_results"
	CategoryPrescriptions Category = "prescriptions"
	CategoryImaging       Category = "imaging"
	CategoryInsurance     Category = "insurance"
	CategoryClinicalNotes Category = "clinical_notes"
	CategoryOther         Category = "other"
)

// Categories lists every valid category, in display order.
var Categories = []Category{
	CategoryLabResults,
	CategoryPrescriptions,
	CategoryImaging,
	CategoryInsurance,
	CategoryClinicalNotes,
	CategoryOther,
}

// ParseCategory validates a raw category string. The bool is false for
// values outside the closed set, including the empty string.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
