package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"gorm.io/datatypes"

	"homehub/cache"
	"homehub/database"
	models "homehub/database/models_pkg"
	"homehub/database/suggestions"
	"homehub/events"
	"homehub/logger"
)

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// SuggestionService generates suggestions from patterns and tracks the
// user's answers (the suggestion inbox).
type SuggestionService struct {
	repo   *suggestions.Repository
	cache  *cache.AutomationCache
	events events.Publisher
	now    func() time.Time
	log    *logger.Logger

	mu sync.Mutex
}

// NewSuggestionService creates a new suggestion service. cache and pub may be nil.
func NewSuggestionService(repo *suggestions.Repository, c *cache.AutomationCache, pub events.Publisher, now func() time.Time, log *logger.Logger) *SuggestionService {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &SuggestionService{repo: repo, cache: c, events: pub, now: now, log: logger.OrNop(log)}
}

// Generate returns the pending suggestion for p, creating one if none is
// pending. Unsupported pattern types, inactive patterns and patterns the
// user already accepted a suggestion for yield nil, nil.
func (s *SuggestionService) Generate(ctx context.Context, p *models.Pattern) (*models.Suggestion, error) {
	if p == nil || !p.IsActive {
		return nil, nil
	}
	draft, ok := BuildSuggestion(p)
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accepted, err := s.repo.HasAccepted(ctx, p.ID, draft.UserID)
	if err != nil {
		s.log.Error("⚠️  Failed to check accepted suggestions", "pattern_id", p.ID, "error", err)
		return nil, database.WrapDBError("SuggestionService.Generate", err)
	}
	if accepted {
		s.log.Debug("⏭️  Pattern already automated", "pattern_id", p.ID)
		return nil, nil
	}

	sug, created, err := s.repo.CreateIfNoPending(ctx, draft)
	if err != nil {
		s.log.Error("⚠️  Failed to generate suggestion", "pattern_id", p.ID, "error", err)
		return nil, database.WrapDBError("SuggestionService.Generate", err)
	}
	if created {
		s.cache.InvalidateSuggestions(ctx, sug.UserID)
		s.log.Info("💡 Suggestion generated", "pattern_id", p.ID, "name", sug.AutomationName)
		s.events.Publish(ctx, events.New(events.SuggestionCreated, sug.UserID, sug))
	}
	return sug, nil
}

// BuildSuggestion renders the text, name and automation config for a
// time-based pattern without touching storage.
func BuildSuggestion(p *models.Pattern) (*models.Suggestion, bool) {
	if p == nil || p.PatternType != models.PatternTypeTimeBased {
		return nil, false
	}
	cond := p.Conditions.Data()
	clock := models.FormatClock(cond.Hour, cond.Minute)

	actionDesc := strings.ReplaceAll(p.Action, "_", " ")
	if p.Value != nil && *p.Value != "" {
		actionDesc += " to " + *p.Value
	}

	trigger := models.TimeTrigger{Time: clock, DaysOfWeek: cond.DaysOfWeek}
	if trigger.DaysOfWeek == nil {
		trigger.DaysOfWeek = []int{}
	}
	rawTrigger, _ := json.Marshal(trigger)

	userID := p.UserID
	if userID == "" {
		userID = models.DefaultUserID
	}

	return &models.Suggestion{
		PatternID: p.ID,
		SuggestionText: fmt.Sprintf("I notice you %s the %s at %s on %s. Would you like me to automate this?",
			actionDesc, p.DeviceID, clock, DescribeDays(cond.DaysOfWeek)),
		AutomationName: fmt.Sprintf("Auto %s %s at %s", titleWords(actionDesc), p.DeviceID, clock),
		AutomationConfig: datatypes.NewJSONType(models.AutomationConfig{
			TriggerType:   models.TriggerTime,
			TriggerConfig: datatypes.JSON(rawTrigger),
			Actions: []models.ActionSpec{{
				DeviceID:   p.DeviceID,
				DeviceType: p.DeviceType,
				Action:     p.Action,
				Value:      p.Value,
			}},
		}),
		Status: models.SuggestionPending,
		UserID: userID,
	}, true
}

// DescribeDays renders a day set as "weekdays", "weekends", "every day" or
// a comma separated list of day names.
func DescribeDays(days []int) string {
	if len(days) == 7 {
		return "every day"
	}
	if equalInts(days, []int{0, 1, 2, 3, 4}) {
		return "weekdays"
	}
	if equalInts(days, []int{5, 6}) {
		return "weekends"
	}
	names := make([]string, 0, len(days))
	for _, d := range sortedCopy(days) {
		if d >= 0 && d < len(dayNames) {
			names = append(names, dayNames[d])
		}
	}
	return strings.Join(names, ", ")
}

// ListPending returns a user's pending suggestions, newest first
func (s *SuggestionService) ListPending(ctx context.Context, userID string) ([]models.Suggestion, error) {
	if userID == "" {
		userID = models.DefaultUserID
	}
	if cached, ok := s.cache.GetPendingSuggestions(ctx, userID); ok {
		return cached, nil
	}
	list, err := s.repo.List(ctx, userID, models.SuggestionPending)
	if err != nil {
		return nil, database.WrapDBError("SuggestionService.ListPending", err)
	}
	s.cache.SetPendingSuggestions(ctx, userID, list)
	return list, nil
}

// List returns a user's suggestions in any status ("" for all)
func (s *SuggestionService) List(ctx context.Context, userID, status string) ([]models.Suggestion, error) {
	if userID == "" {
		userID = models.DefaultUserID
	}
	list, err := s.repo.List(ctx, userID, status)
	if err != nil {
		return nil, database.WrapDBError("SuggestionService.List", err)
	}
	return list, nil
}

// Accept marks a pending suggestion accepted. It returns false when the
// suggestion is unknown, owned by another user, or already answered.
func (s *SuggestionService) Accept(ctx context.Context, id uint, userID string) (bool, error) {
	return s.respond(ctx, id, userID, models.SuggestionAccepted)
}

// Reject marks a pending suggestion rejected. See Accept for the false cases.
func (s *SuggestionService) Reject(ctx context.Context, id uint, userID string) (bool, error) {
	return s.respond(ctx, id, userID, models.SuggestionRejected)
}

func (s *SuggestionService) respond(ctx context.Context, id uint, userID, status string) (bool, error) {
	if userID == "" {
		userID = models.DefaultUserID
	}

	s.mu.Lock()
	ok, err := s.repo.Respond(ctx, id, userID, status, s.now())
	s.mu.Unlock()
	if err != nil {
		s.log.Error("⚠️  Failed to answer suggestion", "suggestion_id", id, "status", status, "error", err)
		return false, database.WrapDBError("SuggestionService.respond", err)
	}
	if !ok {
		return false, nil
	}

	s.cache.InvalidateSuggestions(ctx, userID)
	s.log.Info("📬 Suggestion answered", "suggestion_id", id, "status", status)
	s.events.Publish(ctx, events.New(events.SuggestionAnswered, userID, map[string]interface{}{
		"suggestion_id": id,
		"status":        status,
	}))
	return true, nil
}

// Explain describes why Accept or Reject returned false, for API messages.
func (s *SuggestionService) Explain(ctx context.Context, id uint, userID string) error {
	if userID == "" {
		userID = models.DefaultUserID
	}
	sug, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return database.WrapDBError("SuggestionService.Explain", err)
	}
	if sug == nil || sug.UserID != userID {
		return database.NewNotFoundErrorWithID("suggestion", id)
	}
	return database.NewConflictError("suggestion", id, "already "+sug.Status)
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedCopy(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
