package order

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantpass/internal/mail"
	"github.com/xenking/plantpass/internal/notify"
)

// --- Mock implementations ---

type mockRepo struct {
	orders    map[string]Order
	createErr error
	putErr    error
	creates   int
}

func newMockRepo(orders ...*Order) *mockRepo {
	m := &mockRepo{orders: make(map[string]Order)}
	for _, o := range orders {
		m.orders[o.ID] = *o
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, o *Order) error {
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.ID]; ok {
		return ErrDuplicateID
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *mockRepo) Put(_ context.Context, o *Order) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	delete(m.orders, id)
	return nil
}

func (m *mockRepo) ListRecentUnpaid(ctx context.Context, limit int) ([]Order, error) {
	all, _ := m.ScanAll(ctx)
	return RecentUnpaid(all, limit), nil
}

func (m *mockRepo) ScanAll(_ context.Context) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockRepo) DeleteMany(_ context.Context, ids []string) (int, error) {
	for _, id := range ids {
		delete(m.orders, id)
	}
	return len(ids), nil
}

type broadcastCall struct {
	event   notify.Event
	payload any
}

type mockNotifier struct {
	calls []broadcastCall
}

func (m *mockNotifier) Broadcast(_ context.Context, event notify.Event, payload any) notify.Result {
	m.calls = append(m.calls, broadcastCall{event: event, payload: payload})
	return notify.Result{Connections: 1, Delivered: 1}
}

type mockMailer struct {
	sent []mail.Receipt
	err  error
}

func (m *mockMailer) Dispatch(_ context.Context, kind mail.Kind, payload any) error {
	if kind != mail.KindReceipt {
		return errors.Errorf("unexpected kind %s", kind)
	}
	m.sent = append(m.sent, payload.(mail.Receipt))
	return m.err
}

// --- Helpers ---

func sequenceIDs(ids ...string) IDGenerator {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestService(repo *mockRepo, opts ...Option) (*Service, *mockNotifier, *mockMailer) {
	n := &mockNotifier{}
	ml := &mockMailer{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(repo, n, ml, opts...), n, ml
}

// --- Tests ---

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	svc, n, _ := newTestService(repo, WithIDGenerator(sequenceIDs("AAA-BBB")))

	o, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, "AAA-BBB", o.ID)
	assert.Equal(t, fixedNow.Unix(), o.CreatedAt)
	assert.Equal(t, StatusUnpaid, o.Status)
	assert.True(t, d("17.95").Equal(o.Receipt.Total), o.Receipt.Total.String())
	require.Len(t, n.calls, 1)
	assert.Equal(t, notify.EventCreated, n.calls[0].event)
	assert.Same(t, o, n.calls[0].payload)
}

func TestCreate_KeepsProvidedTimestamp(t *testing.T) {
	svc, _, _ := newTestService(newMockRepo())
	in := validCreateInput()
	in.CreatedAt = 1_600_000_000

	o, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(1_600_000_000), o.CreatedAt)
}

func TestCreate_RetriesOnCollision(t *testing.T) {
	existing := New("AAA-AAA", Draft{})
	repo := newMockRepo(existing)
	svc, _, _ := newTestService(repo, WithIDGenerator(sequenceIDs("AAA-AAA", "AAA-AAA", "BBB-BBB")))

	o, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, "BBB-BBB", o.ID)
	assert.Equal(t, 3, repo.creates)
}

func TestCreate_TwoOrdersNeverShareID(t *testing.T) {
	repo := newMockRepo()
	svc, _, _ := newTestService(repo, WithIDGenerator(sequenceIDs("AAA-AAA", "AAA-AAA", "CCC-CCC")))

	first, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreate_IDAllocationExhausted(t *testing.T) {
	repo := newMockRepo(New("AAA-AAA", Draft{}))
	svc, n, _ := newTestService(repo, WithIDGenerator(sequenceIDs("AAA-AAA")))

	_, err := svc.Create(context.Background(), validCreateInput())
	require.ErrorIs(t, err, ErrIDAllocationExhausted)
	assert.Equal(t, MaxIDAttempts, repo.creates)
	assert.Empty(t, n.calls)
}

func TestCreate_StoreError(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("connection refused")
	svc, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), validCreateInput())
	require.ErrorContains(t, err, "create order: connection refused")
	assert.NotErrorIs(t, err, ErrIDAllocationExhausted)
	assert.Equal(t, 1, repo.creates)
}

func TestCreate_ValidationError(t *testing.T) {
	repo := newMockRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{})
	problems(t, err)
	assert.Zero(t, repo.creates)
}

func TestCreate_RejectsFutureTimestamp(t *testing.T) {
	repo := newMockRepo()
	svc, _, _ := newTestService(repo)
	in := validCreateInput()
	in.CreatedAt = math.MaxInt64

	_, err := svc.Create(context.Background(), in)
	assert.Equal(t, []string{timestampProblem}, problems(t, err))
	assert.Zero(t, repo.creates)
}

func TestGet(t *testing.T) {
	o := testOrder()
	svc, _, _ := newTestService(newMockRepo(o))

	got, err := svc.Get(context.Background(), "ABC-DEF")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.Get(context.Background(), "ZZZ-ZZZ")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "abc")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestUpdate_ReceiptOnlyOnTransition(t *testing.T) {
	repo := newMockRepo(testOrder())
	svc, n, ml := newTestService(repo)
	ctx := context.Background()
	paid := UpdateInput{Payment: &PaymentPatch{Paid: ptr(true)}}

	res, err := svc.Update(ctx, "ABC-DEF", paid)
	require.NoError(t, err)
	assert.True(t, res.Receipt.Requested)
	require.NoError(t, res.Receipt.Err)
	require.Len(t, ml.sent, 1)
	assert.Equal(t, "buyer@example.com", ml.sent[0].Email)
	assert.True(t, d("17.95").Equal(ml.sent[0].Total))

	res, err = svc.Update(ctx, "ABC-DEF", paid)
	require.NoError(t, err)
	assert.False(t, res.Receipt.Requested)
	assert.Len(t, ml.sent, 1)

	require.Len(t, n.calls, 2)
	assert.Equal(t, notify.EventUpdated, n.calls[1].event)
	assert.Equal(t, StatusPaid, repo.orders["ABC-DEF"].Status)
}

func TestUpdate_NoEmailNoReceipt(t *testing.T) {
	o := testOrder()
	o.CustomerEmail = ""
	svc, _, ml := newTestService(newMockRepo(o))

	res, err := svc.Update(context.Background(), "ABC-DEF", UpdateInput{Payment: &PaymentPatch{Paid: ptr(true)}})
	require.NoError(t, err)
	assert.False(t, res.Receipt.Requested)
	assert.Empty(t, ml.sent)
}

func TestUpdate_MailFailureDoesNotFail(t *testing.T) {
	repo := newMockRepo(testOrder())
	svc, n, ml := newTestService(repo)
	ml.err = errors.New("ses throttled")

	res, err := svc.Update(context.Background(), "ABC-DEF", UpdateInput{Payment: &PaymentPatch{Paid: ptr(true)}})
	require.NoError(t, err)
	assert.True(t, res.Receipt.Requested)
	assert.Error(t, res.Receipt.Err)
	assert.True(t, repo.orders["ABC-DEF"].Payment.Paid)
	assert.Len(t, n.calls, 1)
}

func TestUpdate_RepricesAndStores(t *testing.T) {
	repo := newMockRepo(testOrder())
	svc, _, _ := newTestService(repo)

	res, err := svc.Update(context.Background(), "ABC-DEF", UpdateInput{
		Items:   []ItemInput{{SKU: "A", Name: "Fern", Quantity: 1, UnitPrice: d("10")}},
		Voucher: ptr(d("0")),
	})
	require.NoError(t, err)
	assert.True(t, d("9").Equal(res.Order.Receipt.Total), res.Order.Receipt.Total.String())
	assert.True(t, d("9").Equal(repo.orders["ABC-DEF"].Receipt.Total))
}

func TestUpdate_Errors(t *testing.T) {
	repo := newMockRepo(testOrder())
	svc, n, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Update(ctx, "nope", UpdateInput{})
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = svc.Update(ctx, "ZZZ-ZZZ", UpdateInput{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, "ABC-DEF", UpdateInput{Voucher: ptr(d("-1"))})
	problems(t, err)

	repo.putErr = errors.New("disk full")
	_, err = svc.Update(ctx, "ABC-DEF", UpdateInput{})
	require.Error(t, err)

	assert.Empty(t, n.calls)
}

func TestDelete(t *testing.T) {
	repo := newMockRepo(testOrder())
	svc, n, _ := newTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), "ABC-DEF"))
	assert.Empty(t, repo.orders)
	require.Len(t, n.calls, 1)
	assert.Equal(t, notify.EventDeleted, n.calls[0].event)
	assert.Equal(t, map[string]string{"purchase_id": "ABC-DEF"}, n.calls[0].payload)

	require.ErrorIs(t, svc.Delete(context.Background(), "bad"), ErrInvalidID)
}

func TestListRecentUnpaid(t *testing.T) {
	repo := newMockRepo()
	for i := range 200 {
		o := New(fmt.Sprintf("ID%03d", i), Draft{CreatedAt: int64(i)})
		if i%10 == 0 {
			o.UpdatePayment(PaymentPatch{Paid: ptr(true)})
		}
		repo.orders[o.ID] = *o
	}
	svc, _, _ := newTestService(repo)

	got, err := svc.ListRecentUnpaid(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultRecentLimit)
	assert.Equal(t, int64(199), got[0].CreatedAt)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1].CreatedAt, got[i].CreatedAt)
		assert.False(t, got[i].Payment.Paid)
	}
}

func TestRecentUnpaid_TiesByID(t *testing.T) {
	orders := []Order{
		{ID: "AAA-AAA", CreatedAt: 5},
		{ID: "BBB-BBB", CreatedAt: 5},
		{ID: "CCC-CCC", CreatedAt: 9, Payment: Payment{Paid: true}},
		{ID: "DDD-DDD", CreatedAt: 1},
	}

	got := RecentUnpaid(orders, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "BBB-BBB", got[0].ID)
	assert.Equal(t, "AAA-AAA", got[1].ID)
	assert.Empty(t, RecentUnpaid(nil, 5))
}
