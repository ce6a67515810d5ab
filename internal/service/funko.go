package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/internal/cache"
	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/events"
	"github.com/funkostack/funkostore/internal/mailer"
	"github.com/funkostack/funkostore/internal/notify"
	"github.com/funkostack/funkostore/internal/storage"
)

const (
	funkoEntity   = "funko"
	funkoCacheTTL = 30 * time.Minute
)

// FunkoKey is the namespaced cache key for a funko row.
func FunkoKey(id int64) string {
	return fmt.Sprintf("Funko_%d", id)
}

// FileUpload carries an optional image accompanying a write.
type FileUpload struct {
	Name string
	Data io.Reader
}

type CreateFunkoInput struct {
	Name     string  `validate:"required,min=1,max=200"`
	Price    float64 `validate:"gte=0"`
	Category string  `validate:"required"`
	File     *FileUpload
}

type UpdateFunkoInput struct {
	Name     string  `validate:"required,min=1,max=200"`
	Price    float64 `validate:"gte=0"`
	Category string  `validate:"required"`
	File     *FileUpload
}

// FunkoService orchestrates the funko read and write paths: cache-aside
// reads, validate → store file → persist → invalidate cache writes, and
// detached notify/publish/mail side effects.
type FunkoService struct {
	repo       FunkoRepository
	categories CategoryRepository
	cache      cache.Cache
	files      storage.Store
	hub        Broadcaster
	bus        EventPublisher
	mail       MailEnqueuer
	tasks      TaskRunner
	notifyTo   string
	validate   *validator.Validate
}

func NewFunkoService(
	repo FunkoRepository,
	categories CategoryRepository,
	kv cache.Cache,
	files storage.Store,
	hub Broadcaster,
	bus EventPublisher,
	mail MailEnqueuer,
	tasks TaskRunner,
	notifyTo string,
) *FunkoService {
	return &FunkoService{
		repo:       repo,
		categories: categories,
		cache:      kv,
		files:      files,
		hub:        hub,
		bus:        bus,
		mail:       mail,
		tasks:      tasks,
		notifyTo:   notifyTo,
		validate:   validator.New(),
	}
}

// Get is the cache-aside read path: a hit never touches persistence, a
// miss queries the repository and backfills the cache with a bounded TTL.
// Concurrent misses race on the backfill; last writer wins, which is
// harmless since every racer reads the same row.
func (s *FunkoService) Get(ctx context.Context, id int64) (*domain.Funko, error) {
	var cached domain.Funko
	hit, err := s.cache.Get(ctx, FunkoKey(id), &cached)
	if err != nil {
		zap.L().Warn("funko cache read failed", zap.Int64("id", id), zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	funko, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Internalf(err, "query funko %d", id)
	}
	if funko == nil {
		return nil, NotFoundf("funko %d not found", id)
	}
	if err := s.cache.Set(ctx, FunkoKey(id), funko, funkoCacheTTL); err != nil {
		zap.L().Warn("funko cache backfill failed", zap.Int64("id", id), zap.Error(err))
	}
	return funko, nil
}

func (s *FunkoService) List(ctx context.Context, filter FunkoFilter) ([]domain.Funko, int64, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, Internalf(err, "list funkos")
	}
	return rows, total, nil
}

func (s *FunkoService) Latest(ctx context.Context, limit int) ([]domain.Funko, error) {
	rows, err := s.repo.Latest(ctx, limit)
	if err != nil {
		return nil, Internalf(err, "latest funkos")
	}
	return rows, nil
}

// Create validates the category reference, stores the optional image,
// persists the row and caches it, then fires the three detached side
// effects. A side-effect failure never surfaces here and never rolls the
// write back.
func (s *FunkoService) Create(ctx context.Context, in CreateFunkoInput) (*domain.Funko, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, Invalidf(err, "invalid funko")
	}

	category, err := s.categories.GetByName(ctx, in.Category)
	if err != nil {
		return nil, Internalf(err, "resolve category %q", in.Category)
	}
	if category == nil {
		return nil, Validationf("category %q does not exist", in.Category)
	}

	image := domain.NoImage
	if in.File != nil {
		name, err := s.files.Save(in.File.Name, in.File.Data)
		if err != nil {
			return nil, Storagef(err, "store funko image")
		}
		image = name
	}

	now := time.Now()
	funko := &domain.Funko{
		Name:       in.Name,
		Price:      in.Price,
		CategoryID: category.ID,
		Category:   category,
		Image:      image,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, funko); err != nil {
		return nil, Internalf(err, "create funko")
	}

	if err := s.cache.Set(ctx, FunkoKey(funko.ID), funko, funkoCacheTTL); err != nil {
		zap.L().Warn("funko cache set failed", zap.Int64("id", funko.ID), zap.Error(err))
	}

	s.fanOut(notify.EventCreated, events.TopicFunkoCreated, funko.ID, funko)
	s.enqueueMail("Funko created", funko)
	return funko, nil
}

// Update follows the same validate/store sequence as Create, then saves
// the existing row and invalidates its cache key before returning.
func (s *FunkoService) Update(ctx context.Context, id int64, in UpdateFunkoInput) (*domain.Funko, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, Invalidf(err, "invalid funko")
	}

	funko, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Internalf(err, "query funko %d", id)
	}
	if funko == nil {
		return nil, NotFoundf("funko %d not found", id)
	}

	category, err := s.categories.GetByName(ctx, in.Category)
	if err != nil {
		return nil, Internalf(err, "resolve category %q", in.Category)
	}
	if category == nil {
		return nil, Validationf("category %q does not exist", in.Category)
	}

	oldImage := funko.Image
	if in.File != nil {
		name, err := s.files.Save(in.File.Name, in.File.Data)
		if err != nil {
			return nil, Storagef(err, "store funko image")
		}
		funko.Image = name
	}

	funko.Name = in.Name
	funko.Price = in.Price
	funko.CategoryID = category.ID
	funko.Category = category
	funko.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, funko); err != nil {
		return nil, Internalf(err, "update funko %d", id)
	}
	if err := s.cache.Del(ctx, FunkoKey(id)); err != nil {
		zap.L().Warn("funko cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}

	if in.File != nil && oldImage != domain.NoImage {
		s.tasks.Go("funko-image-cleanup", func() {
			if err := s.files.Delete(oldImage); err != nil {
				zap.L().Warn("stale funko image not removed",
					zap.String("image", oldImage), zap.Error(err))
			}
		})
	}

	s.fanOut(notify.EventUpdated, events.TopicFunkoUpdated, funko.ID, funko)
	s.enqueueMail("Funko updated", funko)
	return funko, nil
}

// Delete removes the row and invalidates its cache key. Deletes broadcast
// and publish but send no mail, and the envelope carries no payload.
func (s *FunkoService) Delete(ctx context.Context, id int64) error {
	funko, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Internalf(err, "query funko %d", id)
	}
	if funko == nil {
		return NotFoundf("funko %d not found", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return Internalf(err, "delete funko %d", id)
	}
	if err := s.cache.Del(ctx, FunkoKey(id)); err != nil {
		zap.L().Warn("funko cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}

	if funko.Image != domain.NoImage {
		image := funko.Image
		s.tasks.Go("funko-image-cleanup", func() {
			if err := s.files.Delete(image); err != nil {
				zap.L().Warn("deleted funko image not removed",
					zap.String("image", image), zap.Error(err))
			}
		})
	}

	s.fanOut(notify.EventDeleted, events.TopicFunkoDeleted, id, nil)
	return nil
}

func (s *FunkoService) fanOut(typ notify.EventType, topic string, id int64, payload *domain.Funko) {
	var body interface{}
	if payload != nil {
		copied := *payload
		body = &copied
	}
	s.tasks.Go("funko-notify", func() {
		s.hub.Broadcast(notify.NewEnvelope(funkoEntity, typ, id, body))
	})
	s.tasks.Go("funko-publish", func() {
		s.bus.Publish(topic, body)
	})
}

func (s *FunkoService) enqueueMail(subject string, funko *domain.Funko) {
	if s.notifyTo == "" {
		return
	}
	msg := mailer.Message{
		To:      s.notifyTo,
		Subject: fmt.Sprintf("%s: %s", subject, funko.Name),
		Body: fmt.Sprintf("<p>%s</p><p>id=%d name=%s price=%.2f</p>",
			subject, funko.ID, funko.Name, funko.Price),
	}
	s.tasks.Go("funko-mail", func() {
		s.mail.Enqueue(msg)
	})
}
