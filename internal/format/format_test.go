package format

import (
	"testing"
	"time"

	"github.com/livinlefevreloca/questwatch/internal/quest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuest() quest.Quest {
	return quest.Quest{Config: quest.Config{
		ID:        "1234",
		StartsAt:  time.Date(2024, 6, 1, 17, 30, 0, 0, time.UTC),
		ExpiresAt: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Messages: quest.Messages{
			QuestName:     "Play Foo",
			GameTitle:     "Foo",
			GamePublisher: "Foo Inc",
		},
		TaskConfig: quest.TaskConfig{Tasks: map[string]quest.Task{
			"WATCH_VIDEO":     {EventName: "WATCH_VIDEO", Target: 900},
			"PLAY_ON_DESKTOP": {EventName: "PLAY_ON_DESKTOP", Target: 30},
		}},
		RewardsConfig: quest.RewardsConfig{Rewards: []quest.Reward{
			{Messages: quest.RewardMessages{Name: "Orb"}},
			{Messages: quest.RewardMessages{Name: "Avatar Decoration"}},
		}},
	}}
}

func newTestFormatter(t *testing.T) *Formatter {
	t.Helper()
	now := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	f, err := New(DefaultConfig(),
		WithClock(func() time.Time { return now }),
		WithColor(func() int { return 0x00b0f4 }),
	)
	require.NoError(t, err)
	return f
}

func TestFormat(t *testing.T) {
	msg := newTestFormatter(t).Format(sampleQuest())

	assert.Equal(t, DefaultContent, msg.Content)
	require.Len(t, msg.Embeds, 1)
	embed := msg.Embeds[0]

	assert.Equal(t, "Foo", embed.Title)
	assert.Equal(t, "Name: **Play Foo**\nPublisher: **Foo Inc**", embed.Description)
	assert.Equal(t, "https://discord.com/quests/1234", embed.URL)
	assert.Equal(t, 0x00b0f4, embed.Color)
	assert.Equal(t, "2024-06-02T00:00:00Z", embed.Timestamp)
	assert.Equal(t, "ID: 1234", embed.Footer.Text)

	require.Len(t, embed.Fields, 5)
	// UTC+7
	assert.Equal(t, "📆 Starts", embed.Fields[0].Name)
	assert.Equal(t, "02-06-2024 00:30", embed.Fields[0].Value)
	assert.True(t, embed.Fields[0].Inline)
	assert.Equal(t, "15-06-2024 07:00", embed.Fields[1].Value)
	assert.Equal(t, "📝 Tasks", embed.Fields[2].Name)
	assert.Equal(t, "🖥️ Play On Desktop For 30 seconds\n\t📺 Watch Video For 15 minutes", embed.Fields[2].Value)
	assert.Equal(t, "🎁 Rewards", embed.Fields[3].Name)
	assert.Equal(t, "Orb\n\tAvatar Decoration", embed.Fields[3].Value)
	assert.Equal(t, "🔍 View Quest", embed.Fields[4].Name)
	assert.Equal(t, "[Click here to view quest](https://discord.com/quests/1234)", embed.Fields[4].Value)
	assert.False(t, embed.Fields[4].Inline)
}

func TestFormat_OptionalSectionsOmitted(t *testing.T) {
	q := quest.Quest{Config: quest.Config{ID: "9"}}
	embed := newTestFormatter(t).Format(q).Embeds[0]

	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "unknown", embed.Fields[0].Value)
	assert.Equal(t, "🔍 View Quest", embed.Fields[2].Name)
}

func TestFormat_FixedColorFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Color = 0xff0000
	f, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, 0xff0000, f.Format(sampleQuest()).Embeds[0].Color)
}

func TestNew_UnknownTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0 seconds"},
		{45, "45 seconds"},
		{60, "1 minutes"},
		{900, "15 minutes"},
		{90, "1.5 minutes"},
		{100, "1.7 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestTasks_UnknownEventGetsDefaultEmoji(t *testing.T) {
	q := quest.Quest{Config: quest.Config{
		ID: "1",
		TaskConfig: quest.TaskConfig{Tasks: map[string]quest.Task{
			"X": {EventName: "ACHIEVEMENT_IN_GAME", Target: 120},
		}},
	}}
	assert.Equal(t, []string{"📋 Achievement In Game For 2 minutes"}, Tasks(q))
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WATCH_VIDEO", "Watch Video"},
		{"play_on_desktop", "Play On Desktop"},
		{"ÉCOUTER_MUSIQUE", "Écouter Musique"},
		{"összegyűjt", "Összegyűjt"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleCase(tt.in), "in=%q", tt.in)
	}
}

func TestRandomColorInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		c := randomColor()
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, 0x1000000)
	}
}
