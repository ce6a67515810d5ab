package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/internal/cache"
	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/events"
	"github.com/funkostack/funkostore/internal/notify"
)

const categoryEntity = "categoria"

// CategoryKey is the namespaced cache key for a category row.
func CategoryKey(id string) string {
	return "Categoria_" + id
}

// CategoryService orchestrates category reads and writes. FindByID and
// FindByName are distinct operations on purpose: id is the primary key,
// name is a natural key some read paths use instead.
type CategoryService struct {
	repo   CategoryRepository
	funkos FunkoRepository
	cache  cache.Cache
	hub    Broadcaster
	bus    EventPublisher
	tasks  TaskRunner
}

func NewCategoryService(
	repo CategoryRepository,
	funkos FunkoRepository,
	kv cache.Cache,
	hub Broadcaster,
	bus EventPublisher,
	tasks TaskRunner,
) *CategoryService {
	return &CategoryService{
		repo:   repo,
		funkos: funkos,
		cache:  kv,
		hub:    hub,
		bus:    bus,
		tasks:  tasks,
	}
}

// FindByID is cache-aside with the implementation default TTL.
func (s *CategoryService) FindByID(ctx context.Context, id string) (*domain.Category, error) {
	var cached domain.Category
	hit, err := s.cache.Get(ctx, CategoryKey(id), &cached)
	if err != nil {
		zap.L().Warn("category cache read failed", zap.String("id", id), zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Internalf(err, "query category %s", id)
	}
	if category == nil {
		return nil, NotFoundf("category %s not found", id)
	}
	if err := s.cache.Set(ctx, CategoryKey(id), category, 0); err != nil {
		zap.L().Warn("category cache backfill failed", zap.String("id", id), zap.Error(err))
	}
	return category, nil
}

// FindByName resolves the natural key directly against persistence. Name
// results are not cached: invalidation happens by id key only and a
// name-keyed entry would survive renames.
func (s *CategoryService) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	category, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, Internalf(err, "query category %q", name)
	}
	if category == nil {
		return nil, NotFoundf("category %q not found", name)
	}
	return category, nil
}

func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, Internalf(err, "list categories")
	}
	return rows, nil
}

func (s *CategoryService) Create(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Validationf("category name is required")
	}

	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, Internalf(err, "resolve category %q", name)
	}
	if existing != nil {
		return nil, Conflictf("category %q already exists", name)
	}

	now := time.Now()
	category := &domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, Internalf(err, "create category")
	}

	if err := s.cache.Set(ctx, CategoryKey(category.ID), category, 0); err != nil {
		zap.L().Warn("category cache set failed", zap.String("id", category.ID), zap.Error(err))
	}

	s.fanOut(notify.EventCreated, events.TopicCategoryCreated, category.ID, category)
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Validationf("category name is required")
	}

	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Internalf(err, "query category %s", id)
	}
	if category == nil {
		return nil, NotFoundf("category %s not found", id)
	}

	other, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, Internalf(err, "resolve category %q", name)
	}
	if other != nil && other.ID != id {
		return nil, Conflictf("category %q already exists", name)
	}

	category.Name = name
	category.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, Internalf(err, "update category %s", id)
	}
	if err := s.cache.Del(ctx, CategoryKey(id)); err != nil {
		zap.L().Warn("category cache invalidation failed", zap.String("id", id), zap.Error(err))
	}

	s.fanOut(notify.EventUpdated, events.TopicCategoryUpdated, category.ID, category)
	return category, nil
}

// Delete refuses to remove a category still referenced by funkos; the
// foreign key would otherwise dangle.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Internalf(err, "query category %s", id)
	}
	if category == nil {
		return NotFoundf("category %s not found", id)
	}

	inUse, err := s.funkos.CountByCategory(ctx, id)
	if err != nil {
		return Internalf(err, "count funkos in category %s", id)
	}
	if inUse > 0 {
		return Conflictf("category %s still has %d funkos", id, inUse)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return Internalf(err, "delete category %s", id)
	}
	if err := s.cache.Del(ctx, CategoryKey(id)); err != nil {
		zap.L().Warn("category cache invalidation failed", zap.String("id", id), zap.Error(err))
	}

	s.fanOut(notify.EventDeleted, events.TopicCategoryDeleted, id, nil)
	return nil
}

func (s *CategoryService) fanOut(typ notify.EventType, topic string, id string, payload *domain.Category) {
	var body interface{}
	if payload != nil {
		copied := *payload
		body = &copied
	}
	s.tasks.Go("category-notify", func() {
		s.hub.Broadcast(notify.NewEnvelope(categoryEntity, typ, id, body))
	})
	s.tasks.Go("category-publish", func() {
		s.bus.Publish(topic, body)
	})
}
