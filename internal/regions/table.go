package regions

import (
	"sort"
	"strings"
)

// era is one row of the static table
type era struct {
	Countries []string
	Timeframe string
}

// staticTable maps well-known era and civilization names to the modern
// countries that cover their core territory. It is never mutated at runtime.
var staticTable = map[string]era{
	"Viking Age":                     {[]string{"NO", "SE", "DK", "IS"}, "793–1066 CE"},
	"Ancient Egypt":                  {[]string{"EG", "SD"}, "3100–30 BCE"},
	"Ancient Greece":                 {[]string{"GR", "CY"}, "800–146 BCE"},
	"Roman Republic":                 {[]string{"IT"}, "509–27 BCE"},
	"Roman Empire":                   {[]string{"IT", "FR", "ES", "PT", "GR", "TR", "EG", "TN", "GB"}, "27 BCE–476 CE"},
	"Byzantine Empire":               {[]string{"TR", "GR", "BG", "MK", "CY"}, "330–1453 CE"},
	"Ottoman Empire":                 {[]string{"TR", "GR", "BG", "RS", "EG", "SY", "IQ", "SA"}, "1299–1922"},
	"Persian Empire":                 {[]string{"IR", "IQ", "AF", "TR"}, "550–330 BCE"},
	"Achaemenid Empire":              {[]string{"IR", "IQ", "AF", "TR", "EG"}, "550–330 BCE"},
	"Mesopotamia":                    {[]string{"IQ", "SY"}, "3500–539 BCE"},
	"Babylonian Empire":              {[]string{"IQ"}, "1894–539 BCE"},
	"Assyrian Empire":                {[]string{"IQ", "SY", "TR"}, "2025–609 BCE"},
	"Phoenicia":                      {[]string{"LB", "SY", "IL"}, "1500–300 BCE"},
	"Carthage":                       {[]string{"TN"}, "814–146 BCE"},
	"Han Dynasty":                    {[]string{"CN"}, "206 BCE–220 CE"},
	"Tang Dynasty":                   {[]string{"CN"}, "618–907 CE"},
	"Song Dynasty":                   {[]string{"CN"}, "960–1279"},
	"Ming Dynasty":                   {[]string{"CN"}, "1368–1644"},
	"Qing Dynasty":                   {[]string{"CN", "MN", "TW"}, "1644–1912"},
	"Mongol Empire":                  {[]string{"MN", "CN", "RU", "KZ", "IR"}, "1206–1368"},
	"Edo Period":                     {[]string{"JP"}, "1603–1868"},
	"Heian Period":                   {[]string{"JP"}, "794–1185"},
	"Joseon Dynasty":                 {[]string{"KR", "KP"}, "1392–1897"},
	"Khmer Empire":                   {[]string{"KH", "TH", "LA", "VN"}, "802–1431"},
	"Mughal Empire":                  {[]string{"IN", "PK", "BD", "AF"}, "1526–1857"},
	"Maurya Empire":                  {[]string{"IN", "PK", "NP", "BD"}, "322–185 BCE"},
	"Indus Valley Civilization":      {[]string{"PK", "IN", "AF"}, "3300–1300 BCE"},
	"Aztec Empire":                   {[]string{"MX"}, "1428–1521"},
	"Maya Civilization":              {[]string{"MX", "GT", "BZ", "HN", "SV"}, "2000 BCE–1697 CE"},
	"Inca Empire":                    {[]string{"PE", "EC", "BO", "CL", "AR", "CO"}, "1438–1533"},
	"Olmec Civilization":             {[]string{"MX"}, "1200–400 BCE"},
	"Mali Empire":                    {[]string{"ML", "SN", "GM", "GN", "NE", "MR"}, "1235–1670"},
	"Kingdom of Aksum":               {[]string{"ET", "ER"}, "100–940 CE"},
	"Great Zimbabwe":                 {[]string{"ZW"}, "1100–1450"},
	"Holy Roman Empire":              {[]string{"DE", "AT", "CZ", "IT", "NL", "BE", "CH"}, "800–1806"},
	"Carolingian Empire":             {[]string{"FR", "DE", "IT", "NL", "BE"}, "800–888"},
	"Anglo-Saxon England":            {[]string{"GB"}, "410–1066"},
	"Kievan Rus":                     {[]string{"UA", "BY", "RU"}, "879–1240"},
	"Polish-Lithuanian Commonwealth": {[]string{"PL", "LT", "BY", "UA", "LV"}, "1569–1795"},
	"Austria-Hungary":                {[]string{"AT", "HU", "CZ", "SK", "HR", "SI", "BA"}, "1867–1918"},
	"Soviet Union":                   {[]string{"RU", "UA", "BY", "KZ", "UZ", "GE", "AM", "AZ", "LT", "LV", "EE", "MD", "KG", "TJ", "TM"}, "1922–1991"},
	"Yugoslavia":                     {[]string{"RS", "HR", "SI", "BA", "ME", "MK"}, "1918–1992"},
	"Czechoslovakia":                 {[]string{"CZ", "SK"}, "1918–1993"},
	"Italian Renaissance":            {[]string{"IT"}, "1300–1600"},
	"Renaissance":                    {[]string{"IT", "FR", "NL", "DE"}, "1300–1600"},
	"Reformation":                    {[]string{"DE", "CH", "NL", "GB"}, "1517–1648"},
	"Industrial Revolution":          {[]string{"GB", "US", "DE", "BE"}, "1760–1840"},
	"French Revolution":              {[]string{"FR"}, "1789–1799"},
	"Napoleonic Era":                 {[]string{"FR"}, "1799–1815"},
	"Victorian Era":                  {[]string{"GB"}, "1837–1901"},
	"Meiji Era":                      {[]string{"JP"}, "1868–1912"},
	"American Revolution":            {[]string{"US"}, "1765–1783"},
	"American Civil War":             {[]string{"US"}, "1861–1865"},
	"World War I":                    {[]string{"FR", "BE", "DE", "GB", "RU", "AT", "IT", "TR"}, "1914–1918"},
	"World War II":                   {[]string{"DE", "FR", "GB", "PL", "RU", "JP", "US", "IT", "CN"}, "1939–1945"},
	"Cold War":                       {[]string{"US", "RU"}, "1947–1991"},
	"Silk Road":                      {[]string{"CN", "KZ", "UZ", "IR", "TR"}, "130 BCE–1450s"},
	"Crusades":                       {[]string{"IL", "PS", "LB", "SY", "JO", "TR"}, "1095–1291"},
}

// lowerIndex maps lower-cased table names to their canonical spelling
var lowerIndex = func() map[string]string {
	idx := make(map[string]string, len(staticTable))
	for name := range staticTable {
		idx[strings.ToLower(name)] = name
	}
	return idx
}()

// Lookup returns the static table entry for period: exact match first, then
// a case-insensitive match. The returned slice is a copy.
func Lookup(period string) ([]string, string, bool) {
	name, ok := Canonical(period)
	if !ok {
		return nil, "", false
	}
	e := staticTable[name]
	countries := make([]string, len(e.Countries))
	copy(countries, e.Countries)
	return countries, e.Timeframe, true
}

// Canonical returns the static table spelling of period if the table knows it
func Canonical(period string) (string, bool) {
	if _, ok := staticTable[period]; ok {
		return period, true
	}
	name, ok := lowerIndex[strings.ToLower(strings.TrimSpace(period))]
	return name, ok
}

// Timeframe returns the display timeframe for a static table period
func Timeframe(period string) string {
	_, tf, _ := Lookup(period)
	return tf
}

// Names returns every static table period, sorted
func Names() []string {
	names := make([]string, 0, len(staticTable))
	for name := range staticTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
