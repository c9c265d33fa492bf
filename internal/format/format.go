// Package format renders quests as Discord webhook messages.
package format

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/livinlefevreloca/questwatch/internal/webhook"

	_ "time/tzdata"
)

const (
	DefaultContent      = "🎉 New Quest Available! 🎉"
	DefaultTimezone     = "Asia/Ho_Chi_Minh"
	DefaultQuestPageURL = "https://discord.com/quests"
	DateLayout          = "02-01-2006 15:04"
)

var taskEmoji = map[string]string{
	"WATCH_VIDEO":           "📺",
	"PLAY_ON_DESKTOP":       "🖥️",
	"STREAM_ON_DESKTOP":     "📡",
	"PLAY_ACTIVITY":         "🎮",
	"WATCH_VIDEO_ON_MOBILE": "📱",
}

const defaultTaskEmoji = "📋"

// Config holds the rendering settings
type Config struct {
	Content      string `toml:"content"`
	Timezone     string `toml:"timezone"`
	QuestPageURL string `toml:"quest_page_url"`
	// Color is the embed color as 0xRRGGBB. Zero picks a random color per message.
	Color int `toml:"color"`
}

// DefaultConfig returns the default rendering settings
func DefaultConfig() Config {
	return Config{
		Content:      DefaultContent,
		Timezone:     DefaultTimezone,
		QuestPageURL: DefaultQuestPageURL,
	}
}

// Formatter turns a quest into a webhook message
type Formatter struct {
	config Config
	loc    *time.Location
	now    func() time.Time
	color  func() int
}

// Option customizes a Formatter
type Option func(*Formatter)

// WithClock overrides the embed timestamp source
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithColor overrides the embed color source
func WithColor(color func() int) Option {
	return func(f *Formatter) { f.color = color }
}

// New creates a Formatter. It fails when the timezone is unknown.
func New(config Config, opts ...Option) (*Formatter, error) {
	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}
	if config.QuestPageURL == "" {
		config.QuestPageURL = DefaultQuestPageURL
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("format: loading timezone %q: %w", config.Timezone, err)
	}

	f := &Formatter{
		config: config,
		loc:    loc,
		now:    time.Now,
		color:  randomColor,
	}
	if config.Color != 0 {
		fixed := config.Color
		f.color = func() int { return fixed }
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Format renders q as a quest announcement
func (f *Formatter) Format(q quest.Quest) webhook.Message {
	cfg := q.Config
	link := strings.TrimRight(f.config.QuestPageURL, "/") + "/" + q.ID()

	fields := []webhook.EmbedField{
		{Name: "📆 Starts", Value: f.date(cfg.StartsAt), Inline: true},
		{Name: "🗓️ Expires", Value: f.date(cfg.ExpiresAt), Inline: true},
	}

	if tasks := Tasks(q); len(tasks) > 0 {
		fields = append(fields, webhook.EmbedField{Name: "📝 Tasks", Value: strings.Join(tasks, "\n\t")})
	}
	if rewards := q.RewardNames(); len(rewards) > 0 {
		fields = append(fields, webhook.EmbedField{Name: "🎁 Rewards", Value: strings.Join(rewards, "\n\t")})
	}
	fields = append(fields, webhook.EmbedField{
		Name:  "🔍 View Quest",
		Value: fmt.Sprintf("[Click here to view quest](%s)", link),
	})

	embed := webhook.Embed{
		Title: cfg.Messages.GameTitle,
		Description: fmt.Sprintf("Name: **%s**\nPublisher: **%s**",
			cfg.Messages.QuestName, cfg.Messages.GamePublisher),
		URL:       link,
		Color:     f.color(),
		Timestamp: f.now().UTC().Format(time.RFC3339),
		Footer:    &webhook.EmbedFooter{Text: "ID: " + q.ID()},
		Fields:    fields,
	}

	return webhook.Message{
		Content: f.config.Content,
		Embeds:  []webhook.Embed{embed},
	}
}

func (f *Formatter) date(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.In(f.loc).Format(DateLayout)
}

// Tasks renders each task as "<emoji> <Title> For <duration>"
func Tasks(q quest.Quest) []string {
	keys := q.TaskKeys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		task := q.Config.TaskConfig.Tasks[k]
		emoji, ok := taskEmoji[task.EventName]
		if !ok {
			emoji = defaultTaskEmoji
		}
		out = append(out, fmt.Sprintf("%s %s For %s", emoji, titleCase(task.EventName), Duration(task.Target)))
	}
	return out
}

// Duration renders a target in seconds: whole seconds under a minute,
// otherwise minutes with at most one decimal.
func Duration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	if seconds%60 == 0 {
		return fmt.Sprintf("%d minutes", seconds/60)
	}
	return strconv.FormatFloat(float64(seconds)/60, 'f', 1, 64) + " minutes"
}

// titleCase turns WATCH_VIDEO into "Watch Video"
func titleCase(eventName string) string {
	words := strings.Fields(strings.ReplaceAll(eventName, "_", " "))
	for i, w := range words {
		w = strings.ToLower(w)
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func randomColor() int {
	return rand.IntN(0x1000000)
}
