// Package automation implements the learning pipeline (action log, pattern
// detection, suggestions) and the rule engine that stores, schedules and
// executes automations against a device controller.
package automation

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"homehub/config"
	"homehub/database"
	"homehub/database/actions"
	models "homehub/database/models_pkg"
	"homehub/database/patterns"
	"homehub/logger"
)

const (
	minuteBucket  = 5
	dayShareFloor = 0.7

	defaultMinOccurrences      = 3
	defaultConfidenceThreshold = 0.6
	defaultLookbackDays        = 30

	hourWeight   = 0.5
	minuteWeight = 0.3
	dayWeight    = 0.2
)

// PatternDetector turns a device's recent action log into time-based patterns
type PatternDetector struct {
	actions  *actions.Repository
	patterns *patterns.Repository
	cfg      config.LearningConfig
	now      func() time.Time
	log      *logger.Logger

	// serializes read-modify-write upserts
	mu sync.Mutex
}

// NewPatternDetector creates a new pattern detector. Non-positive settings
// fall back to the defaults with a warning.
func NewPatternDetector(actionsRepo *actions.Repository, patternsRepo *patterns.Repository, cfg config.LearningConfig, now func() time.Time, log *logger.Logger) *PatternDetector {
	log = logger.OrNop(log)
	if cfg.MinOccurrences <= 0 {
		log.Warn("⚠️  Invalid learning setting, using default", "setting", "min_occurrences", "value", cfg.MinOccurrences, "default", defaultMinOccurrences)
		cfg.MinOccurrences = defaultMinOccurrences
	}
	if cfg.ConfidenceThreshold <= 0 {
		log.Warn("⚠️  Invalid learning setting, using default", "setting", "confidence_threshold", "value", cfg.ConfidenceThreshold, "default", defaultConfidenceThreshold)
		cfg.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if cfg.LookbackDays <= 0 {
		log.Warn("⚠️  Invalid learning setting, using default", "setting", "lookback_days", "value", cfg.LookbackDays, "default", defaultLookbackDays)
		cfg.LookbackDays = defaultLookbackDays
	}
	if now == nil {
		now = time.Now
	}
	return &PatternDetector{
		actions:  actionsRepo,
		patterns: patternsRepo,
		cfg:      cfg,
		now:      now,
		log:      log,
	}
}

// Detect scans one device's actions for a user and upserts every pattern
// whose confidence reaches the threshold. A nil slice with a nil error means
// nothing qualified; a *database.DBError means the store failed.
func (pd *PatternDetector) Detect(ctx context.Context, deviceID, userID string) ([]models.Pattern, error) {
	if userID == "" {
		userID = models.DefaultUserID
	}

	since := pd.now().AddDate(0, 0, -pd.cfg.LookbackDays)
	records, err := pd.actions.GetDeviceActions(ctx, deviceID, userID, since)
	if err != nil {
		pd.log.Error("⚠️  Failed to load actions for pattern detection", "device_id", deviceID, "error", err)
		return nil, database.WrapDBError("PatternDetector.Detect", err)
	}

	if len(records) < pd.cfg.MinOccurrences {
		return nil, nil
	}

	candidates := pd.analyze(records)
	if len(candidates) == 0 {
		return nil, nil
	}

	pd.mu.Lock()
	defer pd.mu.Unlock()

	detected := make([]models.Pattern, 0, len(candidates))
	for i := range candidates {
		p := candidates[i]
		if err := pd.patterns.Upsert(ctx, &p); err != nil {
			pd.log.Error("⚠️  Failed to save pattern", "device_id", deviceID, "action", p.Action, "error", err)
			return nil, database.WrapDBError("PatternDetector.Detect", err)
		}
		pd.log.Info("🔍 Pattern detected",
			"device_id", p.DeviceID, "action", p.Action, "confidence", p.Confidence, "occurrences", p.OccurrenceCount)
		detected = append(detected, p)
	}
	return detected, nil
}

type groupKey struct {
	action   string
	value    string
	hasValue bool
}

// analyze groups records by (action, value) and scores each group. Patterns
// are keyed by action alone, so when several values of one action qualify
// only the most confident group is kept.
func (pd *PatternDetector) analyze(records []models.ActionRecord) []models.Pattern {
	groups := make(map[groupKey][]models.ActionRecord)
	var order []groupKey
	for _, r := range records {
		k := groupKey{action: r.Action}
		if r.Value != nil {
			k.value, k.hasValue = *r.Value, true
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].action != order[j].action {
			return order[i].action < order[j].action
		}
		if order[i].hasValue != order[j].hasValue {
			return !order[i].hasValue
		}
		return order[i].value < order[j].value
	})

	best := make(map[string]models.Pattern)
	var actionsSeen []string
	for _, k := range order {
		group := groups[k]
		if len(group) < pd.cfg.MinOccurrences {
			continue
		}
		score := ScoreTimes(group)
		if score.Confidence < pd.cfg.ConfidenceThreshold {
			continue
		}

		latest := group[len(group)-1]
		p := models.Pattern{
			PatternType: models.PatternTypeTimeBased,
			DeviceID:    latest.DeviceID,
			DeviceType:  latest.DeviceType,
			Action:      k.action,
			Conditions: datatypes.NewJSONType(models.PatternConditions{
				Hour:       score.Hour,
				Minute:     score.Minute,
				DaysOfWeek: score.Days,
			}),
			OccurrenceCount: len(group),
			Confidence:      score.Confidence,
			LastOccurrence:  latest.Timestamp,
			IsActive:        true,
			UserID:          latest.UserID,
		}
		if k.hasValue {
			v := k.value
			p.Value = &v
		}

		current, ok := best[k.action]
		if !ok {
			actionsSeen = append(actionsSeen, k.action)
			best[k.action] = p
			continue
		}
		if p.Confidence > current.Confidence ||
			(p.Confidence == current.Confidence && p.OccurrenceCount > current.OccurrenceCount) {
			best[k.action] = p
		}
	}

	out := make([]models.Pattern, 0, len(actionsSeen))
	for _, a := range actionsSeen {
		out = append(out, best[a])
	}
	return out
}

// TimeScore is the time-of-day / day-of-week signature of a group of actions
type TimeScore struct {
	Hour             int
	Minute           int // start of the dominant 5-minute bucket
	Days             []int
	HourConfidence   float64
	MinuteConfidence float64
	DayConfidence    float64
	Confidence       float64
}

// ScoreTimes computes the dominant hour, 5-minute bucket and day set of
// records. On equal counts the smallest hour, bucket or weekday wins.
func ScoreTimes(records []models.ActionRecord) TimeScore {
	var score TimeScore
	total := len(records)
	if total == 0 {
		return score
	}

	hours := make(map[int]int)
	buckets := make(map[int]int)
	days := make(map[int]int)
	weekdays := 0
	for _, r := range records {
		hours[r.Hour]++
		buckets[(r.Minute/minuteBucket)*minuteBucket]++
		days[r.DayOfWeek]++
		if r.DayOfWeek < 5 {
			weekdays++
		}
	}

	n := float64(total)

	var hourCount, bucketCount int
	score.Hour, hourCount = mostFrequent(hours)
	score.Minute, bucketCount = mostFrequent(buckets)
	score.HourConfidence = float64(hourCount) / n
	score.MinuteConfidence = float64(bucketCount) / n

	weekdayShare := float64(weekdays) / n
	weekendShare := float64(total-weekdays) / n
	switch {
	case weekdayShare >= dayShareFloor:
		score.Days = []int{0, 1, 2, 3, 4}
		score.DayConfidence = weekdayShare
	case weekendShare >= dayShareFloor:
		score.Days = []int{5, 6}
		score.DayConfidence = weekendShare
	default:
		for d := range days {
			score.Days = append(score.Days, d)
		}
		sort.Ints(score.Days)
		_, dayCount := mostFrequent(days)
		score.DayConfidence = float64(dayCount) / n
	}

	score.Confidence = clamp01(hourWeight*score.HourConfidence +
		minuteWeight*score.MinuteConfidence +
		dayWeight*score.DayConfidence)
	return score
}

func mostFrequent(counts map[int]int) (value, count int) {
	first := true
	for v, c := range counts {
		if first || c > count || (c == count && v < value) {
			value, count, first = v, c, false
		}
	}
	return value, count
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
