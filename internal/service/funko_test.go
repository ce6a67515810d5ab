package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/funkostack/funkostore/internal/domain"
	"github.com/funkostack/funkostore/internal/mailer"
	"github.com/funkostack/funkostore/internal/notify"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeFunkoRepo struct {
	rows    map[int64]*domain.Funko
	nextID  int64
	gets    int
	creates int
	updates int
	deletes int
	err     error
}

func newFakeFunkoRepo() *fakeFunkoRepo {
	return &fakeFunkoRepo{rows: make(map[int64]*domain.Funko)}
}

func (r *fakeFunkoRepo) List(ctx context.Context, filter FunkoFilter) ([]domain.Funko, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	out := make([]domain.Funko, 0, len(r.rows))
	for _, f := range r.rows {
		out = append(out, *f)
	}
	return out, int64(len(out)), nil
}

func (r *fakeFunkoRepo) Latest(ctx context.Context, limit int) ([]domain.Funko, error) {
	rows, _, err := r.List(ctx, FunkoFilter{})
	return rows, err
}

func (r *fakeFunkoRepo) GetByID(ctx context.Context, id int64) (*domain.Funko, error) {
	r.gets++
	if r.err != nil {
		return nil, r.err
	}
	f, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *f
	return &copied, nil
}

func (r *fakeFunkoRepo) Create(ctx context.Context, funko *domain.Funko) error {
	r.creates++
	if r.err != nil {
		return r.err
	}
	r.nextID++
	funko.ID = r.nextID
	copied := *funko
	r.rows[funko.ID] = &copied
	return nil
}

func (r *fakeFunkoRepo) Update(ctx context.Context, funko *domain.Funko) error {
	r.updates++
	if r.err != nil {
		return r.err
	}
	copied := *funko
	r.rows[funko.ID] = &copied
	return nil
}

func (r *fakeFunkoRepo) Delete(ctx context.Context, id int64) error {
	r.deletes++
	if r.err != nil {
		return r.err
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeFunkoRepo) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var n int64
	for _, f := range r.rows {
		if f.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

type fakeCategoryRepo struct {
	rows    map[string]*domain.Category
	creates int
	updates int
	deletes int
}

func newFakeCategoryRepo(rows ...*domain.Category) *fakeCategoryRepo {
	r := &fakeCategoryRepo{rows: make(map[string]*domain.Category)}
	for _, c := range rows {
		r.rows[c.ID] = c
	}
	return r
}

func (r *fakeCategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(r.rows))
	for _, c := range r.rows {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCategoryRepo) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	c, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCategoryRepo) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	for _, c := range r.rows {
		if c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeCategoryRepo) Create(ctx context.Context, category *domain.Category) error {
	r.creates++
	copied := *category
	r.rows[category.ID] = &copied
	return nil
}

func (r *fakeCategoryRepo) Update(ctx context.Context, category *domain.Category) error {
	r.updates++
	copied := *category
	r.rows[category.ID] = &copied
	return nil
}

func (r *fakeCategoryRepo) Delete(ctx context.Context, id string) error {
	r.deletes++
	delete(r.rows, id)
	return nil
}

type fakeCache struct {
	data map[string][]byte
	sets int
	dels int
	gets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	data, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels++
	delete(c.data, key)
	return nil
}

func (c *fakeCache) DelPattern(ctx context.Context, pattern string) error { return nil }
func (c *fakeCache) Close() error                                         { return nil }

type fakeStore struct {
	saved   []string
	deleted []string
	fail    bool
}

func (s *fakeStore) Save(originalName string, r io.Reader) (string, error) {
	if s.fail {
		return "", fmt.Errorf("disk full")
	}
	name := "20240101000000_0011223344556677" + strings.ToLower(originalName[strings.LastIndex(originalName, "."):])
	s.saved = append(s.saved, name)
	return name, nil
}

func (s *fakeStore) Open(name string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (s *fakeStore) Delete(name string) error {
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *fakeStore) URL(name string) string { return "/uploads/funkos/" + name }
func (s *fakeStore) List() ([]string, error) { return s.saved, nil }

type fakeHub struct {
	envelopes []notify.Envelope
}

func (h *fakeHub) Broadcast(env notify.Envelope) int {
	h.envelopes = append(h.envelopes, env)
	return 1
}

type fakeBus struct {
	topics   []string
	payloads []interface{}
}

func (b *fakeBus) Publish(topic string, payload interface{}) {
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
}

type fakeMail struct {
	messages []mailer.Message
}

func (m *fakeMail) Enqueue(msg mailer.Message) {
	m.messages = append(m.messages, msg)
}

// syncTasks runs submitted side effects inline so tests observe them
// deterministically.
type syncTasks struct{}

func (syncTasks) Go(name string, fn func()) { fn() }

type funkoFixture struct {
	svc   *FunkoService
	repo  *fakeFunkoRepo
	cats  *fakeCategoryRepo
	cache *fakeCache
	files *fakeStore
	hub   *fakeHub
	bus   *fakeBus
	mail  *fakeMail
}

func newFunkoFixture(categories ...*domain.Category) *funkoFixture {
	f := &funkoFixture{
		repo:  newFakeFunkoRepo(),
		cats:  newFakeCategoryRepo(categories...),
		cache: newFakeCache(),
		files: &fakeStore{},
		hub:   &fakeHub{},
		bus:   &fakeBus{},
		mail:  &fakeMail{},
	}
	f.svc = NewFunkoService(f.repo, f.cats, f.cache, f.files,
		f.hub, f.bus, f.mail, syncTasks{}, "ops@funkostore.local")
	return f
}

func marvelCategory() *domain.Category {
	return &domain.Category{ID: "c1", Name: "MARVEL"}
}

func TestFunkoGetCacheHitSkipsRepository(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	cached := &domain.Funko{ID: 7, Name: "Iron Man", Price: 12.5, CategoryID: "c1"}
	if err := f.cache.Set(context.Background(), FunkoKey(7), cached, 0); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Iron Man" {
		t.Errorf("got name %q, want Iron Man", got.Name)
	}
	if f.repo.gets != 0 {
		t.Errorf("repository queried %d times on a cache hit", f.repo.gets)
	}
}

func TestFunkoGetMissBackfillsCache(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	f.repo.rows[3] = &domain.Funko{ID: 3, Name: "Hulk", CategoryID: "c1"}

	got, err := f.svc.Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != 3 {
		t.Errorf("got id %d, want 3", got.ID)
	}
	if f.repo.gets != 1 {
		t.Errorf("repository queried %d times, want 1", f.repo.gets)
	}
	if _, ok := f.cache.data[FunkoKey(3)]; !ok {
		t.Error("cache not backfilled after miss")
	}
}

func TestFunkoGetUnknownIsNotFound(t *testing.T) {
	f := newFunkoFixture()
	_, err := f.svc.Get(context.Background(), 99)
	if KindOf(err) != KindNotFound {
		t.Fatalf("got kind %v, want KindNotFound", KindOf(err))
	}
}

func TestFunkoCreateUnknownCategoryIsValidation(t *testing.T) {
	f := newFunkoFixture(marvelCategory())

	_, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Batman", Price: 9.99, Category: "DC",
	})
	if KindOf(err) != KindValidation {
		t.Fatalf("got kind %v, want KindValidation", KindOf(err))
	}
	if f.repo.creates != 0 {
		t.Error("row created despite invalid category")
	}
	if len(f.hub.envelopes) != 0 || len(f.bus.topics) != 0 || len(f.mail.messages) != 0 {
		t.Error("side effects fired for a rejected write")
	}
}

func TestFunkoCreateHappyPath(t *testing.T) {
	f := newFunkoFixture(marvelCategory())

	funko, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Spider-Man", Price: 15, Category: "MARVEL",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if funko.ID == 0 {
		t.Fatal("no id assigned")
	}
	if funko.Image != domain.NoImage {
		t.Errorf("got image %q, want sentinel", funko.Image)
	}
	if _, ok := f.cache.data[FunkoKey(funko.ID)]; !ok {
		t.Error("created funko not cached")
	}
	if len(f.hub.envelopes) != 1 || f.hub.envelopes[0].Type != notify.EventCreated {
		t.Fatalf("want one CREATED broadcast, got %+v", f.hub.envelopes)
	}
	if len(f.bus.topics) != 1 || f.bus.topics[0] != "onFunkoCreado" {
		t.Errorf("want one onFunkoCreado publish, got %v", f.bus.topics)
	}
	if len(f.mail.messages) != 1 {
		t.Fatalf("want one mail, got %d", len(f.mail.messages))
	}
	if !strings.Contains(f.mail.messages[0].Subject, "Spider-Man") {
		t.Errorf("mail subject %q misses funko name", f.mail.messages[0].Subject)
	}
}

func TestFunkoCreateStoresUploadedImage(t *testing.T) {
	f := newFunkoFixture(marvelCategory())

	funko, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Thor", Price: 20, Category: "MARVEL",
		File: &FileUpload{Name: "thor.PNG", Data: strings.NewReader("img")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(f.files.saved) != 1 {
		t.Fatalf("want one stored file, got %d", len(f.files.saved))
	}
	if funko.Image != f.files.saved[0] {
		t.Errorf("row image %q does not match stored name %q", funko.Image, f.files.saved[0])
	}
	if !strings.HasSuffix(funko.Image, ".png") {
		t.Errorf("extension not normalized: %q", funko.Image)
	}
}

func TestFunkoCreateStorageFailure(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	f.files.fail = true

	_, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Loki", Price: 8, Category: "MARVEL",
		File: &FileUpload{Name: "loki.png", Data: strings.NewReader("img")},
	})
	if KindOf(err) != KindStorage {
		t.Fatalf("got kind %v, want KindStorage", KindOf(err))
	}
	if f.repo.creates != 0 {
		t.Error("row created despite storage failure")
	}
}

func TestFunkoUpdateInvalidatesCache(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	funko, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Groot", Price: 11, Category: "MARVEL",
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := f.svc.Update(context.Background(), funko.ID, UpdateFunkoInput{
		Name: "Baby Groot", Price: 13, Category: "MARVEL",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Baby Groot" {
		t.Errorf("got name %q", updated.Name)
	}
	if _, ok := f.cache.data[FunkoKey(funko.ID)]; ok {
		t.Error("cache entry survived the update")
	}
	if len(f.mail.messages) != 2 {
		t.Errorf("want mails for create and update, got %d", len(f.mail.messages))
	}
}

func TestFunkoUpdateReplacesOldImage(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	funko, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Rocket", Price: 11, Category: "MARVEL",
		File: &FileUpload{Name: "rocket.png", Data: strings.NewReader("v1")},
	})
	if err != nil {
		t.Fatal(err)
	}
	oldImage := funko.Image

	_, err = f.svc.Update(context.Background(), funko.ID, UpdateFunkoInput{
		Name: "Rocket", Price: 11, Category: "MARVEL",
		File: &FileUpload{Name: "rocket2.png", Data: strings.NewReader("v2")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(f.files.deleted) != 1 || f.files.deleted[0] != oldImage {
		t.Errorf("old image not cleaned up, deleted=%v", f.files.deleted)
	}
}

func TestFunkoUpdateUnknownIsNotFound(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	_, err := f.svc.Update(context.Background(), 42, UpdateFunkoInput{
		Name: "Nobody", Price: 1, Category: "MARVEL",
	})
	if KindOf(err) != KindNotFound {
		t.Fatalf("got kind %v, want KindNotFound", KindOf(err))
	}
	if f.repo.updates != 0 {
		t.Error("update issued for a missing row")
	}
}

func TestFunkoDeleteUnknownLeavesCacheAlone(t *testing.T) {
	f := newFunkoFixture()
	err := f.svc.Delete(context.Background(), 5)
	if KindOf(err) != KindNotFound {
		t.Fatalf("got kind %v, want KindNotFound", KindOf(err))
	}
	if f.cache.dels != 0 {
		t.Error("cache invalidated for a missing row")
	}
	if len(f.hub.envelopes) != 0 {
		t.Error("broadcast fired for a missing row")
	}
}

func TestFunkoDeleteBroadcastsWithoutPayloadOrMail(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	funko, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Vision", Price: 14, Category: "MARVEL",
	})
	if err != nil {
		t.Fatal(err)
	}
	mailsBefore := len(f.mail.messages)

	if err := f.svc.Delete(context.Background(), funko.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := f.cache.data[FunkoKey(funko.ID)]; ok {
		t.Error("cache entry survived the delete")
	}
	last := f.hub.envelopes[len(f.hub.envelopes)-1]
	if last.Type != notify.EventDeleted {
		t.Errorf("got event %s, want DELETED", last.Type)
	}
	if last.Payload != nil {
		t.Errorf("delete envelope carries payload %v", last.Payload)
	}
	if len(f.mail.messages) != mailsBefore {
		t.Error("delete enqueued a mail")
	}
	if f.bus.topics[len(f.bus.topics)-1] != "onFunkoEliminado" {
		t.Errorf("got topic %q, want onFunkoEliminado", f.bus.topics[len(f.bus.topics)-1])
	}
}

func TestFunkoEnvelopeUsesEntityDerivedKeys(t *testing.T) {
	f := newFunkoFixture(marvelCategory())
	if _, err := f.svc.Create(context.Background(), CreateFunkoInput{
		Name: "Wanda", Price: 10, Category: "MARVEL",
	}); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(f.hub.envelopes[0])
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	for _, key := range []string{`"funkoId"`, `"funko"`, `"entity"`, `"type"`, `"timestamp"`} {
		if !strings.Contains(body, key) {
			t.Errorf("envelope %s misses key %s", body, key)
		}
	}
}
