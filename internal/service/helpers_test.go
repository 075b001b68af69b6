package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/docstore/memory"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/storage"
	storagemem "github.com/utafrali/storefront/internal/storage/memory"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// --- Recording publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []*pkgkafka.Event
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func (p *recordingPublisher) Last(t *testing.T, topic string, v any) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.topics) - 1; i >= 0; i-- {
		if p.topics[i] == topic {
			require.NoError(t, json.Unmarshal(p.events[i].Data, v))
			return
		}
	}
	t.Fatalf("no event published on %s", topic)
}

// --- Mock mail sender ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// --- Conflict injection ---

// racyCollection fails the first n conditional updates with ErrConflict, as
// if another writer had bumped the version in between.
type racyCollection[T any] struct {
	docstore.Collection[T]
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (c *racyCollection[T]) UpdateByID(ctx context.Context, id string, patch docstore.Patch, opts docstore.UpdateOptions) (*T, error) {
	c.mu.Lock()
	c.calls++
	fail := opts.IfVersion != 0 && c.conflicts > 0
	if fail {
		c.conflicts--
	}
	c.mu.Unlock()
	if fail {
		return nil, docstore.ErrConflict
	}
	return c.Collection.UpdateByID(ctx, id, patch, opts)
}

// --- Fixtures ---

type fixture struct {
	products *memory.Collection[domain.Product]
	orders   *memory.Collection[domain.Order]
	users    *memory.Collection[domain.User]
	assets   *storagemem.Storage
	pub      *recordingPublisher
	events   *event.Producer
}

func newFixture() *fixture {
	pub := &recordingPublisher{}
	return &fixture{
		products: memory.New[domain.Product]("products", "slug"),
		orders:   memory.New[domain.Order]("orders"),
		users:    memory.New[domain.User]("users", "email"),
		assets:   storagemem.New("https://cdn.test"),
		pub:      pub,
		events:   event.NewProducer(pub, logger.Discard()),
	}
}

func (f *fixture) productService() *ProductService {
	s := NewProductService(f.products, nil, f.assets, f.events, nil, 4, logger.Discard())
	s.now = func() time.Time { return testNow }
	return s
}

func (f *fixture) reviewService() *ReviewService {
	return NewReviewService(f.products, nil, f.events, nil, logger.Discard())
}

func (f *fixture) orderService() *OrderService {
	s := NewOrderService(f.orders, f.products, nil, f.events, nil, logger.Discard())
	s.now = func() time.Time { return testNow }
	return s
}

func (f *fixture) userService(sender mail.Sender) *UserService {
	s := NewUserService(
		f.users,
		auth.NewPasswordHasher(bcrypt.MinCost),
		auth.NewSessionManager("test-secret", time.Hour),
		sender,
		f.assets,
		f.events,
		nil,
		logger.Discard(),
	)
	return s
}

func (f *fixture) seedProduct(t *testing.T, id string, stock int64) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:          id,
		Name:        "Product " + id,
		Slug:        "product-" + id,
		Price:       10,
		Description: "desc",
		Stock:       stock,
		Category:    "Electronics",
		Images:      []domain.Image{},
		Reviews:     []domain.Review{},
		CreatedAt:   testNow,
		Version:     1,
	}
	require.NoError(t, f.products.Insert(context.Background(), p))
	return p
}

func pngUpload(body string) *storage.UploadInput {
	return &storage.UploadInput{
		ContentType: "image/png",
		Size:        int64(len(body)),
		Data:        strings.NewReader(body),
	}
}

func float(v float64) *float64 { return &v }
