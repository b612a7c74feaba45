package filter

import (
	"testing"

	"github.com/google/uuid"
)

func TestCheckNoMatch(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategorySpam, Enabled: true, Action: ActionBlock},
	}
	engine := Compile(guildID, configs, nil)

	d := engine.Check("hello, how are you today?")
	if d.Matched {
		t.Errorf("Check() matched = %+v, want no match", d)
	}
	if d.Action != ActionNone {
		t.Errorf("Action = %q, want %q", d.Action, ActionNone)
	}
}

func TestCheckBuiltinSpamMatch(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategorySpam, Enabled: true, Action: ActionBlock},
	}
	engine := Compile(guildID, configs, nil)

	d := engine.Check("hey, click here to claim your prize now!")
	if !d.Matched {
		t.Fatal("Check() should have matched")
	}
	if d.Action != ActionBlock {
		t.Errorf("Action = %q, want %q", d.Action, ActionBlock)
	}
	if d.Category != CategorySpam {
		t.Errorf("Category = %q, want %q", d.Category, CategorySpam)
	}
}

func TestCheckCaseInsensitiveLiteral(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategorySpam, Enabled: true, Action: ActionWarn},
	}
	engine := Compile(guildID, configs, nil)

	d := engine.Check("FREE GIFT CARD for you")
	if !d.Matched {
		t.Fatal("Check() should have matched regardless of case")
	}
}

func TestCheckDisabledCategoryIgnored(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategorySpam, Enabled: false, Action: ActionBlock},
	}
	engine := Compile(guildID, configs, nil)

	d := engine.Check("click here to claim your prize")
	if d.Matched {
		t.Errorf("Check() matched disabled category: %+v", d)
	}
}

func TestCheckCustomLiteralPattern(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	patternID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategoryCustom, Enabled: true, Action: ActionBlock},
	}
	patterns := []FilterPattern{
		{ID: patternID, GuildID: guildID, Text: "badword", IsRegex: false, Enabled: true},
	}
	engine := Compile(guildID, configs, patterns)

	d := engine.Check("hello badword world")
	if !d.Matched {
		t.Fatal("Check() should have matched custom pattern")
	}
	if d.PatternID != patternID.String() {
		t.Errorf("PatternID = %q, want %q", d.PatternID, patternID)
	}
}

func TestCheckCustomRegexPattern(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	patternID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategoryCustom, Enabled: true, Action: ActionLog},
	}
	patterns := []FilterPattern{
		{ID: patternID, GuildID: guildID, Text: `\d{3}-\d{2}-\d{4}`, IsRegex: true, Enabled: true},
	}
	engine := Compile(guildID, configs, patterns)

	d := engine.Check("my number is 123-45-6789 ok")
	if !d.Matched {
		t.Fatal("Check() should have matched regex pattern")
	}
	if d.Action != ActionLog {
		t.Errorf("Action = %q, want %q", d.Action, ActionLog)
	}
}

func TestCheckDisabledPatternIgnored(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategoryCustom, Enabled: true, Action: ActionBlock},
	}
	patterns := []FilterPattern{
		{ID: uuid.New(), GuildID: guildID, Text: "badword", IsRegex: false, Enabled: false},
	}
	engine := Compile(guildID, configs, patterns)

	d := engine.Check("hello badword world")
	if d.Matched {
		t.Errorf("Check() matched disabled pattern: %+v", d)
	}
}

func TestCheckInvalidRegexSkipped(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategoryCustom, Enabled: true, Action: ActionBlock},
	}
	patterns := []FilterPattern{
		// Already-ReDoS-guarded at write time in PGStore.CreatePattern, but Compile defends independently:
		// an uncompilable regex (however it got stored) is skipped rather than failing the whole build.
		{ID: uuid.New(), GuildID: guildID, Text: "(unterminated", IsRegex: true, Enabled: true},
	}
	engine := Compile(guildID, configs, patterns)

	d := engine.Check("(unterminated")
	if d.Matched {
		t.Errorf("Check() should not match on an uncompilable regex: %+v", d)
	}
}

func TestCheckActionPrecedenceBlockBeatsWarn(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategorySpam, Enabled: true, Action: ActionWarn},
		{GuildID: guildID, Category: CategoryAbusive, Enabled: true, Action: ActionBlock},
	}
	engine := Compile(guildID, configs, nil)

	d := engine.Check("free gift card, kill yourself")
	if !d.Matched {
		t.Fatal("Check() should have matched")
	}
	if d.Action != ActionBlock {
		t.Errorf("Action = %q, want %q (higher severity should win even though it matches later)", d.Action, ActionBlock)
	}
	if d.Category != CategoryAbusive {
		t.Errorf("Category = %q, want %q", d.Category, CategoryAbusive)
	}
}

func TestCheckEqualActionEarliestWins(t *testing.T) {
	t.Parallel()
	guildID := uuid.New()
	configs := []FilterConfig{
		{GuildID: guildID, Category: CategorySpam, Enabled: true, Action: ActionBlock},
		{GuildID: guildID, Category: CategoryAbusive, Enabled: true, Action: ActionBlock},
	}
	engine := Compile(guildID, configs, nil)

	d := engine.Check("nobody likes you, also free gift card")
	if !d.Matched {
		t.Fatal("Check() should have matched")
	}
	if d.Category != CategoryAbusive {
		t.Errorf("Category = %q, want %q (earliest match at equal severity should win)", d.Category, CategoryAbusive)
	}
}

func TestCheckEmptyEngineMatchesNothing(t *testing.T) {
	t.Parallel()
	engine := Compile(uuid.New(), nil, nil)

	d := engine.Check("anything at all")
	if d.Matched {
		t.Errorf("Check() matched on an empty engine: %+v", d)
	}
}
