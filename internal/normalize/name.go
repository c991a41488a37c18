package normalize

import (
	"regexp"
	"strings"
)

var (
	descriptorPattern  = regexp.MustCompile(`\b(?:TARJETA GR[AÁ]FICA|PROCESADOR|PROCESSOR|CPU|GPU|MEMORIA|RAM|BOX|CAJA)\b`)
	colorSuffixPattern = regexp.MustCompile(`\s-\s*(?:NEGRO|BLANCO|BLACK|WHITE)\b`)
	glyphPattern       = regexp.MustCompile(`[®™©]`)
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s\-/.]`)
	nonAlnumPattern    = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// NormalizeName canonicalizes a display name: uppercase, descriptor words
// and decoration glyphs removed, punctuation other than "-", "/" and "."
// dropped. Brand words are kept.
func NormalizeName(raw string) string {
	name := collapseSpaces(strings.ToUpper(raw))
	name = colorSuffixPattern.ReplaceAllString(name, " ")
	name = descriptorPattern.ReplaceAllString(name, " ")
	name = glyphPattern.ReplaceAllString(name, "")
	name = punctuationPattern.ReplaceAllString(name, "")
	return collapseSpaces(name)
}

// brandVocabulary is stripped from names before fuzzy comparison; brand
// equality is scored on its own.
var brandVocabulary = []string{
	"INTEL", "AMD", "NVIDIA", "ASUS", "MSI", "GIGABYTE", "ASROCK",
	"CORSAIR", "KINGSTON", "SAMSUNG", "WESTERN DIGITAL", "WD",
	"SEAGATE", "CRUCIAL", "G.SKILL", "HYPERX", "RAZER",
	"LOGITECH", "COOLER MASTER", "NZXT", "THERMALTAKE",
}

var brandVocabularyPattern = wordAlternation(brandVocabulary)

// ComparisonName is the form used for fuzzy similarity: NormalizeName
// without accents, brand words or punctuation.
func ComparisonName(raw string) string {
	name := strings.ToUpper(Fold(NormalizeName(raw)))
	name = brandVocabularyPattern.ReplaceAllString(name, " ")
	name = nonAlnumPattern.ReplaceAllString(name, " ")
	return collapseSpaces(name)
}

// Compact reduces s to its uppercase letters and digits, so that
// "i5-12400F" and "I5 12400F" compare equal.
func Compact(s string) string {
	return nonAlnumPattern.ReplaceAllString(strings.ToUpper(Fold(s)), "")
}

type modelFamily struct {
	name    string
	pattern *regexp.Regexp
	format  func(match string) string
}

// modelFamilies is tried in order; the first family that matches wins.
var modelFamilies = []modelFamily{
	{name: "intel_core", pattern: regexp.MustCompile(`I[357][-\s]?\d{4,5}[A-Z]*`), format: intelModel},
	{name: "amd_ryzen", pattern: regexp.MustCompile(`RYZEN\s*[357]\s*\d{4}[A-Z]*`), format: stripSpaces},
	{name: "nvidia_geforce", pattern: regexp.MustCompile(`(?:RTX|GTX)\s*\d{4}(?:\s*TI\b)?`), format: stripSpaces},
	{name: "amd_radeon", pattern: regexp.MustCompile(`RX\s*\d{4}(?:\s*XT\b)?`), format: stripSpaces},
	{name: "generic", pattern: regexp.MustCompile(`[A-Z]{2,}-?\d{3,}[A-Z]*`), format: stripSpaces},
}

// ExtractModelToken returns the vendor model identifier found in a product
// name, e.g. "I5-12400F" or "RTX4060TI".
func ExtractModelToken(raw string) (string, bool) {
	name := strings.ToUpper(collapseSpaces(raw))
	for _, family := range modelFamilies {
		if m := family.pattern.FindString(name); m != "" {
			return family.format(m), true
		}
	}
	return "", false
}

// "I5 12400F", "I512400F" and "I5-12400F" all become "I5-12400F"
func intelModel(m string) string {
	rest := strings.TrimLeft(m[2:], "- \t")
	return m[:2] + "-" + stripSpaces(rest)
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

type keywordGroup struct {
	value    string
	keywords []string
}

// componentTypes is checked in order against the folded name and category.
var componentTypes = []keywordGroup{
	{"procesador", []string{"procesador", "processor", "cpu", "core i", "ryzen", "pentium", "celeron", "athlon"}},
	{"tarjeta_grafica", []string{"tarjeta grafica", "gpu", "geforce", "radeon", "rtx", "gtx", "video card"}},
	{"memoria_ram", []string{"memoria", "ram", "ddr", "dimm", "memory"}},
	{"almacenamiento", []string{"ssd", "hdd", "nvme", "disco", "storage", "m.2", "sata"}},
	{"placa_madre", []string{"motherboard", "placa madre", "mainboard", "board"}},
	{"fuente", []string{"fuente", "psu", "power supply"}},
	{"gabinete", []string{"gabinete", "case", "caja", "chasis"}},
	{"refrigeracion", []string{"cooler", "refrigeracion", "ventilador", "fan", "liquid cooling"}},
	{"monitor", []string{"monitor", "display", "pantalla", "screen"}},
	{"teclado", []string{"teclado", "keyboard"}},
	{"mouse", []string{"mouse", "raton"}},
	{"auriculares", []string{"auricular", "headset", "headphone"}},
}

// ComponentTypeOther is assigned when no keyword matches
const ComponentTypeOther = "otro"

type componentRule struct {
	value   string
	pattern *regexp.Regexp
}

var componentRules = buildComponentRules(componentTypes)

// DetectComponentType classifies a listing from its name and the store's
// category label. Keywords must start at a word boundary, so "keyboard"
// does not count as a board.
func DetectComponentType(name, category string) string {
	text := Fold(name + " " + category)
	for _, rule := range componentRules {
		if rule.pattern.MatchString(text) {
			return rule.value
		}
	}
	return ComponentTypeOther
}

// knownBrands lists recognizable manufacturers in display form
var knownBrands = []string{
	"Intel", "AMD", "NVIDIA", "ASUS", "MSI", "Gigabyte", "ASRock",
	"Corsair", "Kingston", "Samsung", "Western Digital", "WD",
	"Seagate", "Crucial", "G.Skill", "HyperX", "Razer",
	"Logitech", "Cooler Master", "NZXT", "Thermaltake",
	"EVGA", "Zotac", "Sapphire", "XFX", "PNY", "Palit",
	"Adata", "Patriot", "Team", "Lexar",
}

var knownBrandPatterns = buildBrandPatterns(knownBrands)

// DetectBrand returns the first known manufacturer named in the listing, or
// "" when none is found.
func DetectBrand(name string) string {
	upper := strings.ToUpper(name)
	for i, pattern := range knownBrandPatterns {
		if pattern.MatchString(upper) {
			return knownBrands[i]
		}
	}
	return ""
}

func wordAlternation(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func buildComponentRules(groups []keywordGroup) []componentRule {
	rules := make([]componentRule, 0, len(groups))
	for _, g := range groups {
		quoted := make([]string, len(g.keywords))
		for i, k := range g.keywords {
			quoted[i] = regexp.QuoteMeta(k)
		}
		rules = append(rules, componentRule{
			value:   g.value,
			pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`),
		})
	}
	return rules
}

func buildBrandPatterns(brands []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(brands))
	for i, b := range brands {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToUpper(b)) + `\b`)
	}
	return patterns
}
