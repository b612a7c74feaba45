package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/filter"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

type fakeFilterStore struct {
	configs  []filter.FilterConfig
	patterns []filter.FilterPattern
}

func (s *fakeFilterStore) Configs(ctx context.Context, guildID uuid.UUID) ([]filter.FilterConfig, error) {
	return s.configs, nil
}

func (s *fakeFilterStore) Patterns(ctx context.Context, guildID uuid.UUID) ([]filter.FilterPattern, error) {
	return s.patterns, nil
}

func newTestPipeline(configs []filter.FilterConfig) (*Pipeline, uuid.UUID) {
	guildID := uuid.New()
	store := &fakeFilterStore{configs: configs}
	cache := filter.NewCache(store, zerolog.Nop())
	return NewPipeline(cache, nil, zerolog.Nop()), guildID
}

func TestCheckAllowsCleanContent(t *testing.T) {
	t.Parallel()
	p, guildID := newTestPipeline(nil)

	outcome, err := p.Check(context.Background(), guildID, uuid.New(), uuid.New(), "hello there", wire.DMBaseline)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if outcome.Warned {
		t.Error("Warned = true for clean content")
	}
	if outcome.RewrittenContent != "hello there" {
		t.Errorf("RewrittenContent = %q, want unchanged", outcome.RewrittenContent)
	}
}

func TestCheckBlocksMatchedContent(t *testing.T) {
	t.Parallel()
	configs := []filter.FilterConfig{
		{GuildID: uuid.Nil, Category: filter.CategorySpam, Enabled: true, Action: filter.ActionBlock},
	}
	p, guildID := newTestPipeline(configs)
	configs[0].GuildID = guildID

	_, err := p.Check(context.Background(), guildID, uuid.New(), uuid.New(), "click here to claim your prize now", wire.DMBaseline)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Check() error = %v, want ErrBlocked", err)
	}
}

func TestRewriteMassMentionsBreaksEveryoneWithoutPermission(t *testing.T) {
	t.Parallel()
	got := rewriteMassMentions("hey @everyone check this out", wire.DMBaseline)
	want := "hey @" + zeroWidthSpace + "everyone check this out"
	if got != want {
		t.Errorf("rewriteMassMentions() = %q, want %q", got, want)
	}
}

func TestRewriteMassMentionsBreaksHereWithoutPermission(t *testing.T) {
	t.Parallel()
	got := rewriteMassMentions("@here look", wire.DMBaseline)
	want := "@" + zeroWidthSpace + "here look"
	if got != want {
		t.Errorf("rewriteMassMentions() = %q, want %q", got, want)
	}
}

func TestRewriteMassMentionsLeavesContentWithPermission(t *testing.T) {
	t.Parallel()
	content := "@everyone and @here, listen up"
	got := rewriteMassMentions(content, wire.MentionEveryone)
	if got != content {
		t.Errorf("rewriteMassMentions() = %q, want unchanged %q", got, content)
	}
}

func TestRewriteMassMentionsNoOpWhenAbsent(t *testing.T) {
	t.Parallel()
	content := "nothing special here"
	got := rewriteMassMentions(content, wire.DMBaseline)
	if got != content {
		t.Errorf("rewriteMassMentions() = %q, want unchanged %q", got, content)
	}
}

func TestTruncateAtRuneBoundaryShortStringUnchanged(t *testing.T) {
	t.Parallel()
	if got := truncateAtRuneBoundary("hello", 200); got != "hello" {
		t.Errorf("truncateAtRuneBoundary() = %q, want unchanged", got)
	}
}

func TestTruncateAtRuneBoundaryRespectsMultiByteCodepoints(t *testing.T) {
	t.Parallel()
	s := "日本語のテキストです"
	got := truncateAtRuneBoundary(s, 3)
	if len([]rune(got)) != 3 {
		t.Fatalf("truncateAtRuneBoundary() = %q, want 3 runes", got)
	}
	for _, r := range got {
		if r == 0xFFFD {
			t.Error("truncation split a multi-byte codepoint")
		}
	}
}
