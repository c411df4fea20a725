package main

// Canonical spelling maps for scraped note and accord names. Source sites are
// inconsistent about hyphenation, abbreviations and regional spellings; the
// catalog folds the common variants together at ingestion so frequency tables
// and matching see one name per ingredient.

// BuildNoteAliasMap returns note name variants mapped to their canonical form.
func BuildNoteAliasMap() map[string]string {
	return map[string]string{
		// citrus
		"bergamote":       "bergamot",
		"bergamot orange": "bergamot",
		"mandarin":        "mandarin orange",
		"mandarine":       "mandarin orange",
		"tangerine":       "mandarin orange",
		"lemon zest":      "lemon",
		"sicilian lemon":  "lemon",
		"bitter orange":   "orange",
		"sweet orange":    "orange",
		"neroli essence":  "neroli",

		// florals
		"lily-of-the-valley": "lily of the valley",
		"muguet":             "lily of the valley",
		"rose de mai":        "rose",
		"may rose":           "rose",
		"turkish rose":       "rose",
		"bulgarian rose":     "rose",
		"damask rose":        "rose",
		"jasmin":             "jasmine",
		"jasmine sambac":     "jasmine",
		"ylang ylang":        "ylang-ylang",
		"ylang":              "ylang-ylang",

		// woods and resins
		"cedarwood":             "cedar",
		"virginia cedar":        "cedar",
		"atlas cedar":           "cedar",
		"oud":                   "agarwood (oud)",
		"oud wood":              "agarwood (oud)",
		"agarwood":              "agarwood (oud)",
		"sandal wood":           "sandalwood",
		"australian sandalwood": "sandalwood",
		"vetyver":               "vetiver",
		"olibanum":              "frankincense",
		"incense":               "frankincense",

		// gourmand and amber
		"vanille":         "vanilla",
		"vanilla bean":    "vanilla",
		"bourbon vanilla": "vanilla",
		"tonka":           "tonka bean",
		"coumarin":        "tonka bean",
		"ambergris":       "amber",
		"amber gris":      "amber",
		"cacao":           "cocoa",

		// spices
		"pink peppercorn":  "pink pepper",
		"baies rose":       "pink pepper",
		"black peppercorn": "black pepper",
		"cardamon":         "cardamom",
		"cinammon":         "cinnamon",
	}
}

// BuildAccordAliasMap returns accord name variants mapped to their canonical
// form. Accord vocabularies differ more between sources than note names do.
func BuildAccordAliasMap() map[string]string {
	return map[string]string{
		"woods":          "woody",
		"wood":           "woody",
		"citrusy":        "citrus",
		"fresh citrus":   "citrus",
		"aquatic fresh":  "aquatic",
		"marine":         "aquatic",
		"oceanic":        "aquatic",
		"sweet gourmand": "gourmand",
		"spicy warm":     "warm spicy",
		"soft spicy":     "fresh spicy",
		"oriental":       "amber",
		"ambery":         "amber",
		"flowery":        "floral",
		"white flowers":  "white floral",
		"powder":         "powdery",
		"musk":           "musky",
		"animal":         "animalic",
		"leathery":       "leather",
		"smokey":         "smoky",
		"earth":          "earthy",
		"green notes":    "green",
	}
}
