// Package quest models the quest records returned by the Discord quests API.
package quest

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrMissingID is returned for a record without config.id
var ErrMissingID = errors.New("quest: missing config.id")

// Quest is one record of the quests response. Only the fields the
// notifier renders are decoded.
type Quest struct {
	Config Config `json:"config"`
}

// Config holds the quest definition
type Config struct {
	ID            string        `json:"id"`
	StartsAt      time.Time     `json:"starts_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Messages      Messages      `json:"messages"`
	TaskConfig    TaskConfig    `json:"task_config"`
	RewardsConfig RewardsConfig `json:"rewards_config"`
	Assets        Assets        `json:"assets"`
}

type Messages struct {
	QuestName     string `json:"quest_name"`
	GameTitle     string `json:"game_title"`
	GamePublisher string `json:"game_publisher"`
}

type TaskConfig struct {
	Tasks map[string]Task `json:"tasks"`
}

// Task is a single requirement. Target is in seconds.
type Task struct {
	EventName string `json:"event_name"`
	Target    int    `json:"target"`
}

type RewardsConfig struct {
	Rewards []Reward `json:"rewards"`
}

type Reward struct {
	Messages RewardMessages `json:"messages"`
	Asset    string         `json:"asset"`
}

type RewardMessages struct {
	Name string `json:"name"`
}

type Assets struct {
	Hero string `json:"hero"`
}

// ID returns the quest identifier
func (q Quest) ID() string {
	return q.Config.ID
}

// Name returns the quest display name
func (q Quest) Name() string {
	return q.Config.Messages.QuestName
}

// Validate checks the fields the pipeline depends on
func (q Quest) Validate() error {
	if strings.TrimSpace(q.Config.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// TaskKeys returns the task keys in a stable order
func (q Quest) TaskKeys() []string {
	keys := make([]string, 0, len(q.Config.TaskConfig.Tasks))
	for k := range q.Config.TaskConfig.Tasks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// RewardNames returns the reward names in response order
func (q Quest) RewardNames() []string {
	names := make([]string, 0, len(q.Config.RewardsConfig.Rewards))
	for _, r := range q.Config.RewardsConfig.Rewards {
		if r.Messages.Name != "" {
			names = append(names, r.Messages.Name)
		}
	}
	return names
}

// Batch indexes one fetch result by quest id
type Batch map[string]Quest

// NewBatch validates quests and indexes them by id. When an id repeats the
// first occurrence wins.
func NewBatch(quests []Quest) (Batch, error) {
	batch := make(Batch, len(quests))
	for i, q := range quests {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("quest %d: %w", i, err)
		}
		if _, ok := batch[q.ID()]; ok {
			continue
		}
		batch[q.ID()] = q
	}
	return batch, nil
}

// IDs returns the set of ids in the batch
func (b Batch) IDs() mapset.Set[string] {
	ids := mapset.NewSetWithSize[string](len(b))
	for id := range b {
		ids.Add(id)
	}
	return ids
}

// OrderNewestFirst orders ids by the start time of their record, latest
// first, ties broken by id. Ids missing from the batch sort last.
func (b Batch) OrderNewestFirst(ids []string) []string {
	out := slices.Clone(ids)
	sort.SliceStable(out, func(i, j int) bool {
		qi, okI := b[out[i]]
		qj, okJ := b[out[j]]
		if okI != okJ {
			return okI
		}
		if !qi.Config.StartsAt.Equal(qj.Config.StartsAt) {
			return qi.Config.StartsAt.After(qj.Config.StartsAt)
		}
		return out[i] < out[j]
	})
	return out
}
