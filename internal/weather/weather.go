package weather

import "strings"

// Class is a normalized weather category. Raw DATATRAN weather descriptions
// are free text; the model only ever sees one of these values.
type Class string

const (
	ClassRain    Class = "Rain"
	ClassCloudy  Class = "Cloudy"
	ClassClear   Class = "Clear"
	ClassWindy   Class = "Windy"
	ClassFogMist Class = "Fog/Mist"
	ClassOther   Class = "Other"
)

// Classes lists every normalized category.
var Classes = []Class{ClassRain, ClassCloudy, ClassClear, ClassWindy, ClassFogMist, ClassOther}

// rules are checked in order; the first keyword match wins. Rain outranks
// cloudy so that "Nublado com chuva" classifies as rain.
var rules = []struct {
	class    Class
	keywords []string
}{
	{ClassRain, []string{"chuva", "garoa"}},
	{ClassCloudy, []string{"nublado"}},
	{ClassClear, []string{"ceu claro", "sol", "bom"}},
	{ClassWindy, []string{"vento"}},
	{ClassFogMist, []string{"nevoeiro", "neblina"}},
}

// deaccent folds the accented characters that occur in DATATRAN weather
// descriptions so matching is insensitive to inconsistent encoding upstream.
var deaccent = strings.NewReplacer(
	"á", "a", "â", "a", "ã", "a", "à", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u",
	"ç", "c",
)

// Normalize maps a free-text weather description to its Class. It must be
// the same function at training and prediction time; the encoder vocabulary
// is built from its output.
func Normalize(text string) Class {
	folded := deaccent.Replace(strings.ToLower(text))
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(folded, kw) {
				return rule.class
			}
		}
	}
	return ClassOther
}
