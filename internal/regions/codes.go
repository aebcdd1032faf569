package regions

import (
	"strings"
)

// isoCodes is the ISO 3166-1 alpha-2 officially assigned code set, plus XK (Kosovo)
var isoCodes = map[string]bool{}

func init() {
	for _, code := range strings.Fields(`
		AD AE AF AG AI AL AM AO AQ AR AS AT AU AW AX AZ
		BA BB BD BE BF BG BH BI BJ BL BM BN BO BQ BR BS BT BV BW BY BZ
		CA CC CD CF CG CH CI CK CL CM CN CO CR CU CV CW CX CY CZ
		DE DJ DK DM DO DZ
		EC EE EG EH ER ES ET
		FI FJ FK FM FO FR
		GA GB GD GE GF GG GH GI GL GM GN GP GQ GR GS GT GU GW GY
		HK HM HN HR HT HU
		ID IE IL IM IN IO IQ IR IS IT
		JE JM JO JP
		KE KG KH KI KM KN KP KR KW KY KZ
		LA LB LC LI LK LR LS LT LU LV LY
		MA MC MD ME MF MG MH MK ML MM MN MO MP MQ MR MS MT MU MV MW MX MY MZ
		NA NC NE NF NG NI NL NO NP NR NU NZ
		OM
		PA PE PF PG PH PK PL PM PN PR PS PT PW PY
		QA
		RE RO RS RU RW
		SA SB SC SD SE SG SH SI SJ SK SL SM SN SO SR SS ST SV SX SY SZ
		TC TD TF TG TH TJ TK TL TM TN TO TR TT TV TW TZ
		UA UG UM US UY UZ
		VA VC VE VG VI VN VU
		WF WS
		XK
		YE YT
		ZA ZM ZW`) {
		isoCodes[code] = true
	}
}

// IsCodeSyntax reports whether s is exactly two uppercase ASCII letters
func IsCodeSyntax(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// IsKnownCode reports whether code is an assigned ISO 3166-1 alpha-2 code
func IsKnownCode(code string) bool {
	return isoCodes[strings.ToUpper(strings.TrimSpace(code))]
}

// NormalizeCodes uppercases, trims and deduplicates codes, dropping anything
// that is not exactly two letters. Order of first occurrence is preserved.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if !IsCodeSyntax(c) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ParseCodes splits free-form user input ("no, se dk;IS") into normalized codes
func ParseCodes(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '|'
	})
	return NormalizeCodes(fields)
}

// UnknownCodes returns the codes that are syntactically valid but not assigned.
// These are tolerated and only flagged to the user.
func UnknownCodes(codes []string) []string {
	var unknown []string
	for _, c := range codes {
		if !IsKnownCode(c) {
			unknown = append(unknown, c)
		}
	}
	return unknown
}
