package regions

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ppiankov/eramap/internal/model"
)

// Rule is a keyword / year-range heuristic that maps loosely named eras to countries
type Rule struct {
	Name        string   // Label used in reasoning text
	Keywords    []string // Whole-word phrases, matched case-insensitively
	FromYear    int      // Optional window start (negative = BCE)
	ToYear      int      // Optional window end
	Countries   []string // Resulting ISO codes
	Description string   // Short explanation shown to the user
}

// HasWindow reports whether the rule is restricted to a year window
func (r Rule) HasWindow() bool {
	return r.FromYear != 0 || r.ToYear != 0
}

// Window renders the rule's year window, or "" when it has none
func (r Rule) Window() string {
	if !r.HasWindow() {
		return ""
	}
	return formatWindow(r.FromYear, r.ToYear)
}

// Reasoning renders a user-facing explanation for a match
func (r Rule) Reasoning(matched string) string {
	if r.HasWindow() {
		return fmt.Sprintf("matched %q within %s (%s)", matched, formatWindow(r.FromYear, r.ToYear), r.Description)
	}
	return fmt.Sprintf("matched %q (%s)", matched, r.Description)
}

// heuristicRules are evaluated in order; the first match wins, so
// year-restricted rules come before broad keyword rules that share words.
var heuristicRules = []Rule{
	{
		Name:        "First World War",
		Keywords:    []string{"war", "wartime", "trench", "trenches", "front"},
		FromYear:    1914,
		ToYear:      1918,
		Countries:   []string{"FR", "BE", "DE", "GB", "RU", "AT", "IT", "TR"},
		Description: "European theatre of the First World War",
	},
	{
		Name:        "Second World War",
		Keywords:    []string{"war", "wartime", "blitz", "holocaust", "occupation", "resistance", "front"},
		FromYear:    1939,
		ToYear:      1945,
		Countries:   []string{"DE", "FR", "GB", "PL", "RU", "JP", "US", "IT", "CN"},
		Description: "major belligerents of the Second World War",
	},
	{
		Name:        "French Revolution",
		Keywords:    []string{"revolution", "revolutionary", "terror"},
		FromYear:    1789,
		ToYear:      1799,
		Countries:   []string{"FR"},
		Description: "French Revolution",
	},
	{
		Name:        "Russian Revolution",
		Keywords:    []string{"revolution", "revolutionary", "bolshevik", "bolsheviks"},
		FromYear:    1917,
		ToYear:      1923,
		Countries:   []string{"RU"},
		Description: "Russian Revolution and Civil War",
	},
	{
		Name:        "Colonial America",
		Keywords:    []string{"colonial", "colonies", "settlers"},
		FromYear:    1607,
		ToYear:      1776,
		Countries:   []string{"US"},
		Description: "British North American colonies",
	},
	{
		Name:        "Gold Rush",
		Keywords:    []string{"gold rush"},
		FromYear:    1848,
		ToYear:      1900,
		Countries:   []string{"US", "CA", "AU"},
		Description: "nineteenth-century gold rushes",
	},
	{
		Name:        "Norse",
		Keywords:    []string{"viking", "vikings", "norse", "norsemen", "varangian", "varangians"},
		Countries:   []string{"NO", "SE", "DK", "IS"},
		Description: "Scandinavian homelands of the Norse",
	},
	{
		Name:        "Crusades",
		Keywords:    []string{"crusade", "crusades", "crusader", "crusaders", "templar", "templars"},
		Countries:   []string{"IL", "PS", "LB", "SY", "JO", "TR"},
		Description: "Levantine crusader states",
	},
	{
		Name:        "Ottoman",
		Keywords:    []string{"ottoman", "ottomans", "sultanate of rum", "janissary", "janissaries"},
		Countries:   []string{"TR", "GR", "BG", "RS", "EG", "SY", "IQ"},
		Description: "Ottoman core territories",
	},
	{
		Name:        "Byzantine",
		Keywords:    []string{"byzantine", "byzantium", "constantinople"},
		Countries:   []string{"TR", "GR", "BG"},
		Description: "Eastern Roman heartland",
	},
	{
		Name:        "Roman",
		Keywords:    []string{"roman", "romans", "rome", "caesar", "augustan"},
		Countries:   []string{"IT"},
		Description: "Roman Italy",
	},
	{
		Name:        "Egyptian",
		Keywords:    []string{"pharaoh", "pharaohs", "pharaonic", "egyptian", "ptolemaic", "nubian"},
		Countries:   []string{"EG", "SD"},
		Description: "Nile valley",
	},
	{
		Name:        "Greek",
		Keywords:    []string{"greek", "hellenic", "hellenistic", "athenian", "spartan", "minoan", "mycenaean"},
		Countries:   []string{"GR", "CY"},
		Description: "Aegean Greek world",
	},
	{
		Name:        "Persian",
		Keywords:    []string{"persian", "persia", "sassanid", "sasanian", "safavid", "parthian"},
		Countries:   []string{"IR"},
		Description: "Iranian plateau",
	},
	{
		Name:        "Mesopotamian",
		Keywords:    []string{"sumer", "sumerian", "babylon", "babylonian", "akkadian", "assyrian", "mesopotamian"},
		Countries:   []string{"IQ", "SY"},
		Description: "Tigris-Euphrates basin",
	},
	{
		Name:        "Chinese dynasties",
		Keywords:    []string{"shang", "zhou", "qin", "han dynasty", "tang dynasty", "song dynasty", "yuan dynasty", "ming", "qing", "imperial china"},
		Countries:   []string{"CN"},
		Description: "Chinese imperial dynasties",
	},
	{
		Name:        "Japanese",
		Keywords:    []string{"samurai", "shogun", "shogunate", "tokugawa", "edo", "heian", "kamakura", "meiji"},
		Countries:   []string{"JP"},
		Description: "Japanese historical periods",
	},
	{
		Name:        "Mughal",
		Keywords:    []string{"mughal", "mughals", "maratha", "raj"},
		Countries:   []string{"IN", "PK", "BD"},
		Description: "Indian subcontinent",
	},
	{
		Name:        "Mesoamerican",
		Keywords:    []string{"aztec", "aztecs", "mexica", "toltec", "olmec", "tenochtitlan"},
		Countries:   []string{"MX"},
		Description: "central Mexico",
	},
	{
		Name:        "Maya",
		Keywords:    []string{"maya", "mayan", "mayans"},
		Countries:   []string{"MX", "GT", "BZ", "HN"},
		Description: "Maya lowlands",
	},
	{
		Name:        "Andean",
		Keywords:    []string{"inca", "incan", "incas", "tawantinsuyu"},
		Countries:   []string{"PE", "EC", "BO", "CL"},
		Description: "Andean highlands",
	},
	{
		Name:        "Soviet",
		Keywords:    []string{"soviet", "soviets", "ussr", "stalinist", "bolshevik"},
		Countries:   []string{"RU", "UA", "BY", "KZ", "GE", "AM", "AZ", "LT", "LV", "EE"},
		Description: "Soviet Union successor states",
	},
	{
		Name:        "Yugoslav",
		Keywords:    []string{"yugoslav", "yugoslavia", "sfry", "tito"},
		Countries:   []string{"RS", "HR", "SI", "BA", "ME", "MK"},
		Description: "former Yugoslavia",
	},
	{
		Name:        "Kievan Rus",
		Keywords:    []string{"kievan", "kyivan", "rus"},
		Countries:   []string{"UA", "BY", "RU"},
		Description: "medieval East Slavic state",
	},
	{
		Name:        "Habsburg",
		Keywords:    []string{"habsburg", "hapsburg", "austro hungarian"},
		Countries:   []string{"AT", "HU", "CZ", "SK", "HR", "SI"},
		Description: "Habsburg crown lands",
	},
	{
		Name:        "Prussian",
		Keywords:    []string{"prussia", "prussian", "bismarck"},
		Countries:   []string{"DE", "PL"},
		Description: "Kingdom of Prussia",
	},
	{
		Name:        "Moorish Iberia",
		Keywords:    []string{"moorish", "moors", "al andalus", "andalusian", "reconquista"},
		Countries:   []string{"ES", "PT", "MA"},
		Description: "Iberian peninsula under Muslim rule",
	},
	{
		Name:        "Celtic",
		Keywords:    []string{"celtic", "celts", "gaelic", "druid", "druids"},
		Countries:   []string{"IE", "GB", "FR"},
		Description: "Celtic Atlantic fringe",
	},
	{
		Name:        "British",
		Keywords:    []string{"tudor", "tudors", "elizabethan", "victorian", "edwardian", "regency"},
		Countries:   []string{"GB"},
		Description: "English and British periods",
	},
	{
		Name:        "Napoleonic",
		Keywords:    []string{"napoleon", "napoleonic", "bonaparte"},
		Countries:   []string{"FR"},
		Description: "Napoleonic France",
	},
	{
		Name:        "Renaissance",
		Keywords:    []string{"renaissance", "medici", "quattrocento"},
		Countries:   []string{"IT"},
		Description: "Italian Renaissance",
	},
	{
		Name:        "Wild West",
		Keywords:    []string{"wild west", "old west", "frontier", "cowboy", "cowboys"},
		Countries:   []string{"US"},
		Description: "American frontier",
	},
	{
		Name:        "Zulu",
		Keywords:    []string{"zulu", "zulus"},
		Countries:   []string{"ZA"},
		Description: "Zulu Kingdom",
	},
	{
		Name:        "Aksumite",
		Keywords:    []string{"aksum", "axum", "aksumite", "abyssinia", "abyssinian"},
		Countries:   []string{"ET", "ER"},
		Description: "Ethiopian highlands",
	},
}

// MatchHeuristic finds the first rule whose keywords appear in era as whole
// words. Rules with a year window only match when the query carries years
// that overlap the window. The matched keyword is returned for reasoning.
func MatchHeuristic(era string, startYear, endYear int) (Rule, string, bool) {
	words := tokenize(era)
	if len(words) == 0 {
		return Rule{}, "", false
	}
	q := model.InferenceQuery{StartYear: startYear, EndYear: endYear}
	hasYears := q.HasYears()
	lo, hi := q.YearRange()

	for _, rule := range heuristicRules {
		if rule.HasWindow() {
			if !hasYears || lo > rule.ToYear || hi < rule.FromYear {
				continue
			}
		}
		for _, kw := range rule.Keywords {
			if containsPhrase(words, tokenize(kw)) {
				r := rule
				r.Countries = append([]string(nil), rule.Countries...)
				return r, kw, true
			}
		}
	}
	return Rule{}, "", false
}

// tokenize lower-cases s and splits it into letter/digit words
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as a consecutive run in words
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func formatWindow(from, to int) string {
	return formatYear(from) + "–" + formatYear(to)
}

func formatYear(y int) string {
	if y < 0 {
		return fmt.Sprintf("%d BCE", -y)
	}
	return fmt.Sprintf("%d", y)
}
