package automation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"homehub/cache"
	"homehub/config"
	"homehub/database"
	"homehub/database/actions"
	"homehub/database/automations"
	models "homehub/database/models_pkg"
	"homehub/database/patterns"
	"homehub/database/suggestions"
	"homehub/devices"
	"homehub/events"
	"homehub/logger"
)

// Deps are the collaborators the pipeline is built from. Only DB and
// Config are required.
type Deps struct {
	DB         *gorm.DB
	Config     *config.Config
	Controller devices.Controller
	Cache      *cache.AutomationCache
	Events     events.Publisher
	Now        func() time.Time
	Log        *logger.Logger
}

// Service bundles every pipeline component, wired once at startup and
// handed to the API, the scheduler loop, the gateway handlers and the CLI.
type Service struct {
	Detector    *PatternDetector
	Suggestions *SuggestionService
	Store       *Store
	Executor    *Executor
	Scheduler   *Scheduler
	Recorder    *Recorder
	Dispatcher  *EventDispatcher
	Scenes      *SceneService
	Controller  devices.Controller

	// Events reaches the external sinks plus the event dispatcher
	Events events.Publisher

	patterns *patterns.Repository
	log      *logger.Logger
}

// NewService wires the pipeline
func NewService(d Deps) *Service {
	log := logger.OrNop(d.Log)
	loc := d.Config.Location()
	base := d.Now
	if base == nil {
		base = time.Now
	}
	now := func() time.Time { return base().In(loc) }
	sinks := d.Events
	if sinks == nil {
		sinks = events.Nop{}
	}

	actionsRepo := actions.NewRepository(d.DB)
	patternsRepo := patterns.NewRepository(d.DB)
	suggestionsRepo := suggestions.NewRepository(d.DB)
	automationsRepo := automations.NewRepository(d.DB)

	store := NewStore(automationsRepo, d.Cache, sinks, log.With("component", "store"))
	executor := NewExecutor(automationsRepo, suggestionsRepo, store, d.Controller, sinks, now, log.With("component", "executor"))
	dispatcher := NewEventDispatcher(store, executor, log.With("component", "dispatcher"))
	withDispatch := events.Multi{sinks, dispatcher}

	detector := NewPatternDetector(actionsRepo, patternsRepo, d.Config.Learning, now, log.With("component", "detector"))
	sugg := NewSuggestionService(suggestionsRepo, d.Cache, sinks, now, log.With("component", "suggestions"))

	return &Service{
		Detector:    detector,
		Suggestions: sugg,
		Store:       store,
		Executor:    executor,
		Scheduler:   NewScheduler(store, executor, d.Config.Scheduler.Interval, now, log.With("component", "scheduler")),
		Recorder:    NewRecorder(actionsRepo, detector, sugg, d.Controller, withDispatch, now, loc, log.With("component", "recorder")),
		Dispatcher:  dispatcher,
		Scenes:      NewSceneService(automationsRepo, store, d.Controller, log.With("component", "scenes")),
		Controller:  d.Controller,
		Events:      withDispatch,
		patterns:    patternsRepo,
		log:         log,
	}
}

// ListPatterns returns stored patterns, most confident first
func (s *Service) ListPatterns(ctx context.Context, f patterns.Filter) ([]models.Pattern, error) {
	list, err := s.patterns.List(ctx, f)
	if err != nil {
		return nil, database.WrapDBError("Service.ListPatterns", err)
	}
	return list, nil
}

// SetPatternActive switches a pattern on or off. Re-detection refreshes a
// pattern's statistics but never its flag. Returns false if it does not exist.
func (s *Service) SetPatternActive(ctx context.Context, id uint, active bool) (bool, error) {
	ok, err := s.patterns.SetActive(ctx, id, active)
	if err != nil {
		return false, database.WrapDBError("Service.SetPatternActive", err)
	}
	if ok {
		s.log.Info("🔧 Pattern flag changed", "pattern_id", id, "active", active)
	}
	return ok, nil
}

// AcceptAndCreate accepts a suggestion and materializes it in one call, as
// the accept endpoint does. The automation is nil when the accept failed.
func (s *Service) AcceptAndCreate(ctx context.Context, suggestionID uint, userID string) (bool, *models.Automation, error) {
	ok, err := s.Suggestions.Accept(ctx, suggestionID, userID)
	if err != nil || !ok {
		return ok, nil, err
	}
	a, err := s.Executor.CreateFromSuggestion(ctx, suggestionID, userID)
	return true, a, err
}
