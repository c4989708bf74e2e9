package models

import "strings"

// Category classifies a facility by the kind of service it provides.
type Category string

const (
	CategoryGeneralHospital Category = "general_hospital"
	CategoryHospital        Category = "hospital"
	CategoryClinic          Category = "clinic"
	CategoryPharmacy        Category = "pharmacy"
	CategoryRehabilitation  Category = "rehabilitation"
	CategoryHealthCenter    Category = "health_center"
	CategoryOther           Category = "other"
)

// categoryRule maps name keywords to a category. Rules are evaluated in
// order and the first match wins, so more specific keywords come first.
type categoryRule struct {
	keywords []string
	category Category
}

var categoryRules = []categoryRule{
	{[]string{"종합병원", "대학병원"}, CategoryGeneralHospital},
	{[]string{"재활", "요양병원"}, CategoryRehabilitation},
	{[]string{"보건소", "보건지소", "보건진료소"}, CategoryHealthCenter},
	{[]string{"약국"}, CategoryPharmacy},
	{[]string{"병원"}, CategoryHospital},
	{[]string{"의원", "치과", "한의원"}, CategoryClinic},
}

// ClassifyCategory infers a category from a free-text facility name.
// Names that match no rule fall back to CategoryOther.
func ClassifyCategory(name string) Category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
