package va

import "strings"

// Cause is a resolved cause of death: the classifier's cause text plus the
// ICD-10 code the registry's option set stores.
type Cause struct {
	Text  string
	ICD10 string
}

// causeTable maps normalized classifier cause text to ICD-10. Covers the
// adult, child, and neonate cause lists the classifier emits. Text shared
// between lists (Malaria, Pneumonia, Road Traffic) appears once.
var causeTable = map[string]string{
	// Adult causes
	"aids":                              "B24",
	"aids with tb":                      "B20",
	"bite of venomous animal":           "X27",
	"breast cancer":                     "C50",
	"cervical cancer":                   "C53",
	"cirrhosis":                         "K74",
	"colorectal cancer":                 "C19",
	"copd":                              "J44",
	"diabetes":                          "E14",
	"diarrhea/dysentery":                "A09",
	"drowning":                          "W74",
	"epilepsy":                          "G40",
	"esophageal cancer":                 "C15",
	"falls":                             "W19",
	"fires":                             "X09",
	"homicide":                          "Y09",
	"hypertensive disorder":             "I10",
	"ihd - acute myocardial infarction": "I21",
	"leukemia/lymphomas":                "C95",
	"lung cancer":                       "C34",
	"malaria":                           "B54",
	"maternal":                          "O95",
	"other cancers":                     "C80",
	"other cardiovascular diseases":     "I99",
	"other digestive diseases":          "K92",
	"other infectious diseases":         "B99",
	"other injuries":                    "X59",
	"other non-communicable diseases":   "R69",
	"pneumonia":                         "J18",
	"poisonings":                        "X49",
	"prostate cancer":                   "C61",
	"renal failure":                     "N19",
	"road traffic":                      "V89",
	"stomach cancer":                    "C16",
	"stroke":                            "I64",
	"suicide":                           "X84",
	"tb":                                "A16",

	// Child causes not in the adult list
	"encephalitis":                         "G04",
	"malnutrition":                         "E46",
	"measles":                              "B05",
	"meningitis":                           "G03",
	"other defined causes of child deaths": "R69",
	"sepsis":                               "A41",
	"violent death":                        "Y09",

	// Neonate causes
	"birth asphyxia":          "P21",
	"congenital malformation": "Q89",
	"meningitis/sepsis":       "P36",
	"preterm delivery":        "P07",
	"stillbirth":              "P95",
}

// LookupCause resolves classifier cause text against the known cause list.
// Matching is case- and whitespace-insensitive.
func LookupCause(text string) (Cause, bool) {
	icd, ok := causeTable[normalizeCause(text)]
	if !ok {
		return Cause{}, false
	}
	return Cause{Text: strings.TrimSpace(text), ICD10: icd}, true
}

func normalizeCause(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
