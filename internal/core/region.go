package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Region is a courier coverage zone.
type Region string

const (
	RegionMetroManila Region = "metro_manila"
	RegionLuzon       Region = "luzon"
	RegionVisayas     Region = "visayas"
	RegionMindanao    Region = "mindanao"
	RegionNationwide  Region = "nationwide"
)

// Valid reports whether r is a known region.
func (r Region) Valid() bool {
	switch r {
	case RegionMetroManila, RegionLuzon, RegionVisayas, RegionMindanao, RegionNationwide:
		return true
	}
	return false
}

var metroManilaPlaces = []string{
	"metro manila", "ncr", "national capital region",
	"manila", "quezon city", "makati", "makati city", "taguig", "taguig city", "pasig", "pasig city",
	"mandaluyong", "mandaluyong city", "pasay", "pasay city", "paranaque", "paranaque city",
	"las pinas", "las pinas city", "muntinlupa", "muntinlupa city", "marikina", "marikina city",
	"caloocan", "caloocan city", "malabon", "malabon city", "navotas", "navotas city",
	"valenzuela", "valenzuela city", "san juan", "san juan city", "pateros",
}

var luzonProvinces = []string{
	"abra", "albay", "apayao", "aurora", "bataan", "batanes", "batangas", "benguet", "bulacan",
	"cagayan", "camarines norte", "camarines sur", "catanduanes", "cavite", "ifugao",
	"ilocos norte", "ilocos sur", "isabela", "kalinga", "la union", "laguna", "marinduque",
	"masbate", "mountain province", "nueva ecija", "nueva vizcaya", "occidental mindoro",
	"oriental mindoro", "palawan", "pampanga", "pangasinan", "quezon", "quirino", "rizal",
	"romblon", "sorsogon", "tarlac", "zambales",
}

var visayasProvinces = []string{
	"aklan", "antique", "biliran", "bohol", "capiz", "cebu", "eastern samar", "guimaras",
	"iloilo", "leyte", "negros occidental", "negros oriental", "northern samar", "samar",
	"siquijor", "southern leyte",
}

var mindanaoProvinces = []string{
	"agusan del norte", "agusan del sur", "basilan", "bukidnon", "camiguin", "cotabato",
	"davao de oro", "davao del norte", "davao del sur", "davao occidental", "davao oriental",
	"dinagat islands", "lanao del norte", "lanao del sur", "maguindanao", "misamis occidental",
	"misamis oriental", "sarangani", "south cotabato", "sultan kudarat", "sulu",
	"surigao del norte", "surigao del sur", "tawi-tawi", "zamboanga del norte",
	"zamboanga del sur", "zamboanga sibugay",
}

var provinceRegions = buildProvinceIndex()

func buildProvinceIndex() map[string]Region {
	idx := make(map[string]Region)
	for _, group := range []struct {
		region Region
		names  []string
	}{
		{RegionMetroManila, metroManilaPlaces},
		{RegionLuzon, luzonProvinces},
		{RegionVisayas, visayasProvinces},
		{RegionMindanao, mindanaoProvinces},
	} {
		for _, name := range group.names {
			idx[name] = group.region
		}
	}
	return idx
}

// RegionFor resolves the coverage region of an address. The province is
// tried first; Metro Manila cities entered as the province or city are
// recognised as well.
func RegionFor(province, city string) (Region, bool) {
	if r, ok := provinceRegions[normalizePlace(province)]; ok {
		return r, true
	}
	if r, ok := provinceRegions[normalizePlace(city)]; ok && r == RegionMetroManila {
		return r, true
	}
	return "", false
}

// normalizePlace lowercases, strips diacritics (Parañaque → paranaque) and
// collapses whitespace.
func normalizePlace(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(folded)), ".")
	folded = strings.TrimPrefix(folded, "province of ")
	return strings.Join(strings.Fields(folded), " ")
}
