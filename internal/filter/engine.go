package filter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"
)

// literalRule pairs one dictionary entry with the rule metadata needed to produce a Decision.
type literalRule struct {
	text      string
	patternID string
	category  Category
	action    Action
}

// regexRule pairs a compiled regex with its rule metadata.
type regexRule struct {
	re        *regexp.Regexp
	patternID string
	category  Category
	action    Action
}

// Engine is a compiled, immutable content filter for a single guild. It is safe for concurrent read-only use
// by multiple goroutines; nothing about it mutates after Compile returns.
type Engine struct {
	guildID  uuid.UUID
	literals []literalRule
	matcher  *ahocorasick.Matcher
	regexes  []regexRule
}

// Compile builds an Engine from the guild's enabled FilterConfig rows and FilterPattern rows. Configs that are
// disabled contribute nothing; patterns whose guild config category is disabled, or that are themselves
// disabled, are skipped.
func Compile(guildID uuid.UUID, configs []FilterConfig, patterns []FilterPattern) *Engine {
	enabled := make(map[Category]Action, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled[cfg.Category] = cfg.Action
		}
	}

	e := &Engine{guildID: guildID}

	// Iterate built-in categories in a fixed order (rather than ranging over the map directly) so the
	// resulting literal dictionary, and therefore Check's tie-breaking among same-position matches, is
	// deterministic across builds of the same configuration.
	for _, category := range []Category{CategorySlurs, CategoryHateSpeech, CategorySpam, CategoryAbusive} {
		words := builtinKeywords[category]
		action, ok := enabled[category]
		if !ok {
			continue
		}
		for _, word := range words {
			e.literals = append(e.literals, literalRule{
				text:      word,
				patternID: "builtin:" + string(category) + ":" + word,
				category:  category,
				action:    action,
			})
		}
	}

	customAction, customEnabled := enabled[CategoryCustom]
	if customEnabled {
		for _, p := range patterns {
			if !p.Enabled {
				continue
			}
			if p.IsRegex {
				re, err := regexp.Compile(p.Text)
				if err != nil {
					continue
				}
				e.regexes = append(e.regexes, regexRule{
					re:        re,
					patternID: p.ID.String(),
					category:  CategoryCustom,
					action:    customAction,
				})
				continue
			}
			e.literals = append(e.literals, literalRule{
				text:      p.Text,
				patternID: p.ID.String(),
				category:  CategoryCustom,
				action:    customAction,
			})
		}
	}

	if len(e.literals) > 0 {
		dict := make([]string, len(e.literals))
		for i, lit := range e.literals {
			dict[i] = strings.ToLower(lit.text)
		}
		e.matcher = ahocorasick.NewStringMatcher(dict)
	}

	return e
}

type candidate struct {
	pos       int
	action    Action
	patternID string
	category  Category
}

// Check scans text against the compiled engine and returns the most severe matching rule. Among rules of equal
// severity, the one whose match starts earliest in text wins. A clean GetOrBuild/Check pair never suspends
// once the engine is cached: this method does no I/O.
func (e *Engine) Check(text string) Decision {
	var candidates []candidate

	if e.matcher != nil {
		lower := strings.ToLower(text)
		for _, idx := range e.matcher.Match([]byte(lower)) {
			lit := e.literals[idx]
			pos := strings.Index(lower, strings.ToLower(lit.text))
			if pos < 0 {
				continue
			}
			candidates = append(candidates, candidate{pos, lit.action, lit.patternID, lit.category})
		}
	}

	for _, rule := range e.regexes {
		loc := rule.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		candidates = append(candidates, candidate{loc[0], rule.action, rule.patternID, rule.category})
	}

	if len(candidates) == 0 {
		return Decision{Action: ActionNone}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].action.precedence() != candidates[j].action.precedence() {
			return candidates[i].action.precedence() > candidates[j].action.precedence()
		}
		return candidates[i].pos < candidates[j].pos
	})

	best := candidates[0]
	return Decision{
		Matched:   true,
		Action:    best.action,
		PatternID: best.patternID,
		Category:  best.category,
	}
}
