package orb

import (
	"sort"
	"strings"
)

// Candidate is a scan universe symbol with its static reference data.
// FloatMillions is zero when the float is unknown.
type Candidate struct {
	Symbol        string  `json:"symbol" mapstructure:"symbol"`
	FloatMillions float64 `json:"float_millions" mapstructure:"float_millions"`
	Exchange      string  `json:"exchange" mapstructure:"exchange"`
}

// UniverseRules are the static eligibility rules.
type UniverseRules struct {
	MaxFloatMillions float64
	Exchanges        []string
}

// Exclusion reasons reported by FilterUniverse.
const (
	ExcludedMissingFloat    = "missing_float"
	ExcludedFloatAboveLimit = "float_above_ceiling"
	ExcludedUnknownExchange = "unrecognized_exchange"
	ExcludedDuplicateSymbol = "duplicate_symbol"
	ExcludedEmptySymbol     = "empty_symbol"
)

// UniverseReport is the outcome of applying the static rules.
type UniverseReport struct {
	Eligible     []Candidate
	Excluded     map[string]string
	MissingFloat int
	Total        int
	// NeedsReview is set when more than half of the universe lacks float data.
	// Those candidates stay excluded.
	NeedsReview bool
}

// FilterUniverse keeps candidates with a known float at or below the ceiling on a recognized exchange.
// Candidates without float data are excluded rather than assumed small.
func FilterUniverse(universe []Candidate, rules UniverseRules) UniverseReport {
	exchanges := make(map[string]struct{}, len(rules.Exchanges))
	for _, ex := range rules.Exchanges {
		exchanges[strings.ToUpper(ex)] = struct{}{}
	}

	report := UniverseReport{
		Excluded: make(map[string]string),
		Total:    len(universe),
	}
	seen := make(map[string]struct{}, len(universe))
	for _, c := range universe {
		symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
		switch {
		case symbol == "":
			report.Excluded[c.Symbol] = ExcludedEmptySymbol
			continue
		case hasKey(seen, symbol):
			report.Excluded[symbol] = ExcludedDuplicateSymbol
			continue
		}
		seen[symbol] = struct{}{}

		if c.FloatMillions <= 0 {
			report.MissingFloat++
			report.Excluded[symbol] = ExcludedMissingFloat
			continue
		}
		if c.FloatMillions > rules.MaxFloatMillions {
			report.Excluded[symbol] = ExcludedFloatAboveLimit
			continue
		}
		if _, ok := exchanges[strings.ToUpper(c.Exchange)]; !ok {
			report.Excluded[symbol] = ExcludedUnknownExchange
			continue
		}
		c.Symbol = symbol
		report.Eligible = append(report.Eligible, c)
	}
	report.NeedsReview = report.Total > 0 && report.MissingFloat*2 > report.Total

	sort.SliceStable(report.Eligible, func(i, j int) bool {
		return report.Eligible[i].Symbol < report.Eligible[j].Symbol
	})
	return report
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}

// DefaultUniverse is the built-in scan universe. Symbols without float data are kept so the
// missing-data ratio stays visible in the report.
func DefaultUniverse() []Candidate {
	known := []Candidate{
		{Symbol: "NVDA", FloatMillions: 2450, Exchange: "NASDAQ"},
		{Symbol: "TSLA", FloatMillions: 2850, Exchange: "NASDAQ"},
		{Symbol: "AMD", FloatMillions: 1620, Exchange: "NASDAQ"},
		{Symbol: "AAPL", FloatMillions: 15400, Exchange: "NASDAQ"},
		{Symbol: "MSFT", FloatMillions: 7440, Exchange: "NASDAQ"},
		{Symbol: "META", FloatMillions: 2280, Exchange: "NASDAQ"},
		{Symbol: "GOOGL", FloatMillions: 5800, Exchange: "NASDAQ"},
		{Symbol: "AMZN", FloatMillions: 10300, Exchange: "NASDAQ"},
		{Symbol: "COIN", FloatMillions: 170, Exchange: "NASDAQ"},
		{Symbol: "PLTR", FloatMillions: 2100, Exchange: "NYSE"},
		{Symbol: "SOFI", FloatMillions: 950, Exchange: "NASDAQ"},
		{Symbol: "RIVN", FloatMillions: 850, Exchange: "NASDAQ"},
		{Symbol: "LCID", FloatMillions: 1800, Exchange: "NASDAQ"},
		{Symbol: "NIO", FloatMillions: 1650, Exchange: "NYSE"},
		{Symbol: "SMCI", FloatMillions: 52, Exchange: "NASDAQ"},
		{Symbol: "ARM", FloatMillions: 102, Exchange: "NASDAQ"},
		{Symbol: "MARA", FloatMillions: 280, Exchange: "NASDAQ"},
		{Symbol: "RIOT", FloatMillions: 250, Exchange: "NASDAQ"},
		{Symbol: "HOOD", FloatMillions: 780, Exchange: "NASDAQ"},
		{Symbol: "RBLX", FloatMillions: 590, Exchange: "NYSE"},
		{Symbol: "SNAP", FloatMillions: 1450, Exchange: "NYSE"},
		{Symbol: "UBER", FloatMillions: 1980, Exchange: "NYSE"},
		{Symbol: "ABNB", FloatMillions: 610, Exchange: "NASDAQ"},
		{Symbol: "DKNG", FloatMillions: 450, Exchange: "NASDAQ"},
		{Symbol: "MU", FloatMillions: 1100, Exchange: "NASDAQ"},
		{Symbol: "INTC", FloatMillions: 4200, Exchange: "NASDAQ"},
		{Symbol: "NFLX", FloatMillions: 430, Exchange: "NASDAQ"},
	}
	unknown := []string{
		"MRNA", "BABA", "JD", "PYPL", "SQ", "SNOW", "CRWD", "PANW",
		"ENPH", "FSLR", "LI", "XPEV", "SHOP", "DIS", "BA", "F", "GM",
		"AAL", "DAL", "UAL", "CCL", "NCLH", "RCL", "WYNN", "MGM", "LVS",
		"CHWY", "ROKU", "ZM", "DOCU", "PTON", "W", "ETSY", "PINS", "TTD", "OKTA",
	}
	for _, s := range unknown {
		known = append(known, Candidate{Symbol: s})
	}
	return known
}
