package application

import (
	"context"
	"sort"
	"sync"
	"time"

	listingDomain "github.com/ema-residences/service-reservation/internal/domain/listing"
	notificationDomain "github.com/ema-residences/service-reservation/internal/domain/notification"
	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	userDomain "github.com/ema-residences/service-reservation/internal/domain/user"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/ema-residences/service-reservation/internal/platform/kafka"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memReservationRepo stores snapshots so that failed operations never leak mutations.
type memReservationRepo struct {
	mu      sync.Mutex
	listing sync.Mutex
	items   map[uuid.UUID]*reservationDomain.Reservation
	saveErr error
	findErr error
	onSave  func()
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{items: make(map[uuid.UUID]*reservationDomain.Reservation)}
}

func cloneReservation(r *reservationDomain.Reservation) *reservationDomain.Reservation {
	return reservationDomain.ReconstructReservation(
		r.ID(), r.RenterID(), r.ListingID(), r.HostID(), r.Stay(),
		r.NightlyRate(), r.TotalPrice(), r.GuestCount(), r.Status(), r.Notes(),
		r.PaymentStatus(), r.CheckInTime(), r.CheckOutTime(), r.ConfirmedAt(), r.CancelledAt(),
		r.Version(), r.CreatedAt(), r.UpdatedAt(),
	)
}

func (m *memReservationRepo) put(r *reservationDomain.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.ID()] = cloneReservation(r)
}

func (m *memReservationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memReservationRepo) get(id uuid.UUID) *reservationDomain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.items[id]; ok {
		return cloneReservation(r)
	}
	return nil
}

func (m *memReservationRepo) filter(keep func(r *reservationDomain.Reservation) bool) []*reservationDomain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservationDomain.Reservation
	for _, r := range m.items {
		if keep(r) {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out
}

func paginate(items []*reservationDomain.Reservation, page, limit int) ([]*reservationDomain.Reservation, int64) {
	total := int64(len(items))
	offset := (page - 1) * limit
	if offset >= len(items) {
		return []*reservationDomain.Reservation{}, total
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], total
}

func (m *memReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*reservationDomain.Reservation, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if r := m.get(id); r != nil {
		return r, nil
	}
	return nil, domain.NewNotFoundError("Reservation", id.String())
}

func (m *memReservationRepo) FindOverlapping(_ context.Context, listingID uuid.UUID, stay reservationDomain.StayRange, statuses []reservationDomain.ReservationStatus, exclude uuid.UUID) ([]*reservationDomain.Reservation, error) {
	return m.filter(func(r *reservationDomain.Reservation) bool {
		if r.ListingID() != listingID || r.ID() == exclude || !r.Stay().Overlaps(stay) {
			return false
		}
		for _, s := range statuses {
			if r.Status() == s {
				return true
			}
		}
		return false
	}), nil
}

func (m *memReservationRepo) FindByRenterID(_ context.Context, renterID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	items, total := paginate(m.filter(func(r *reservationDomain.Reservation) bool { return r.RenterID() == renterID }), page, limit)
	return items, total, nil
}

func (m *memReservationRepo) FindByHostID(_ context.Context, hostID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	items, total := paginate(m.filter(func(r *reservationDomain.Reservation) bool { return r.HostID() == hostID }), page, limit)
	return items, total, nil
}

func (m *memReservationRepo) FindBookedRanges(_ context.Context, listingID uuid.UUID, from, to time.Time) ([]*reservationDomain.Reservation, error) {
	window := reservationDomain.StayRange{Start: from, End: to}
	items := m.filter(func(r *reservationDomain.Reservation) bool {
		return r.ListingID() == listingID && r.Status().BlocksDates() && r.Stay().Overlaps(window)
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Stay().Start.Before(items[j].Stay().Start) })
	return items, nil
}

func (m *memReservationRepo) FindConfirmedStartingBetween(_ context.Context, from, to time.Time) ([]*reservationDomain.Reservation, error) {
	return m.filter(func(r *reservationDomain.Reservation) bool {
		start := r.Stay().Start
		return r.Status() == reservationDomain.StatusConfirmed && !start.Before(from) && start.Before(to)
	}), nil
}

func (m *memReservationRepo) HostStats(_ context.Context, hostID uuid.UUID) (reservationDomain.HostStats, error) {
	var stats reservationDomain.HostStats
	for _, r := range m.filter(func(r *reservationDomain.Reservation) bool { return r.HostID() == hostID }) {
		stats.Total++
		switch r.Status() {
		case reservationDomain.StatusPending:
			stats.Pending++
		case reservationDomain.StatusConfirmed:
			stats.Confirmed++
			stats.TotalRevenue += r.TotalPrice()
		case reservationDomain.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (m *memReservationRepo) ListAll(_ context.Context, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	items, total := paginate(m.filter(func(*reservationDomain.Reservation) bool { return true }), page, limit)
	return items, total, nil
}

func (m *memReservationRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, r := range m.filter(func(*reservationDomain.Reservation) bool { return true }) {
		counts[r.Status().String()]++
	}
	return counts, nil
}

func (m *memReservationRepo) Save(_ context.Context, r *reservationDomain.Reservation) error {
	if m.onSave != nil {
		m.onSave()
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[r.ID()]; exists {
		return domain.NewConflictError("reservation already exists")
	}
	m.items[r.ID()] = cloneReservation(r)
	return nil
}

func (m *memReservationRepo) Update(_ context.Context, r *reservationDomain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[r.ID()]
	if !ok || stored.Version() != r.Version()-1 {
		return domain.NewConflictError("reservation was modified by another transaction")
	}
	m.items[r.ID()] = cloneReservation(r)
	return nil
}

func (m *memReservationRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFoundError("Reservation", id.String())
	}
	delete(m.items, id)
	return nil
}

// WithinListingLock serializes every listing behind one mutex, which is stricter than needed.
func (m *memReservationRepo) WithinListingLock(_ context.Context, _ uuid.UUID, fn func(repo reservationDomain.ReservationRepository) error) error {
	m.listing.Lock()
	defer m.listing.Unlock()
	return fn(m)
}

type memListings struct {
	items map[uuid.UUID]*listingDomain.Listing
}

func newMemListings(listings ...*listingDomain.Listing) *memListings {
	m := &memListings{items: make(map[uuid.UUID]*listingDomain.Listing)}
	for _, l := range listings {
		m.items[l.ID()] = l
	}
	return m
}

func (m *memListings) FindByID(_ context.Context, id uuid.UUID) (*listingDomain.Listing, error) {
	if l, ok := m.items[id]; ok {
		return l, nil
	}
	return nil, domain.NewNotFoundError("Listing", id.String())
}

type memUsers struct {
	items map[uuid.UUID]*userDomain.User
}

func newMemUsers(users ...*userDomain.User) *memUsers {
	m := &memUsers{items: make(map[uuid.UUID]*userDomain.User)}
	for _, u := range users {
		m.items[u.ID()] = u
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	if u, ok := m.items[id]; ok {
		return u, nil
	}
	return nil, domain.NewNotFoundError("User", id.String())
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() kafka.CloudEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// cancellingPublisher cancels the request context as soon as the first event goes out, the
// way a client disconnect would land right after the commit.
type cancellingPublisher struct {
	recordingPublisher
	cancel       context.CancelFunc
	ctxCancelled bool
}

func (p *cancellingPublisher) PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error {
	p.cancel()
	p.mu.Lock()
	p.ctxCancelled = p.ctxCancelled || ctx.Err() != nil
	p.mu.Unlock()
	return p.recordingPublisher.PublishEvent(ctx, topic, event)
}

// memIdempotencyStore behaves like the Redis store: SETNX on Reserve, and every call fails
// once its context is done.
type memIdempotencyStore struct {
	mu      sync.Mutex
	pending map[string]bool
	done    map[string]uuid.UUID
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{pending: make(map[string]bool), done: make(map[string]uuid.UUID)}
}

func (m *memIdempotencyStore) Reserve(ctx context.Context, scope, key string) (IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return IdempotencyRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if id, ok := m.done[k]; ok {
		return IdempotencyRecord{ReservationID: id}, nil
	}
	if m.pending[k] {
		return IdempotencyRecord{}, nil
	}
	m.pending[k] = true
	return IdempotencyRecord{Reserved: true}, nil
}

func (m *memIdempotencyStore) Complete(ctx context.Context, scope, key string, reservationID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	delete(m.pending, k)
	m.done[k] = reservationID
	return nil
}

func (m *memIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, scope+":"+key)
	return nil
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Reserve(ctx context.Context, scope, key string) (IdempotencyRecord, error) {
	args := m.Called(ctx, scope, key)
	return args.Get(0).(IdempotencyRecord), args.Error(1)
}

func (m *mockIdempotencyStore) Complete(ctx context.Context, scope, key string, reservationID uuid.UUID) error {
	return m.Called(ctx, scope, key, reservationID).Error(0)
}

func (m *mockIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return m.Called(ctx, scope, key).Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

// memNotificationRepo enforces one notification per source event and recipient.
type memNotificationRepo struct {
	mu      sync.Mutex
	items   []*notificationDomain.Notification
	sent    map[uuid.UUID]bool
	saveErr error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{sent: make(map[uuid.UUID]bool)}
}

func (m *memNotificationRepo) Save(_ context.Context, n *notificationDomain.Notification) (bool, error) {
	if m.saveErr != nil {
		return false, m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if n.SourceEventID() != "" && existing.SourceEventID() == n.SourceEventID() && existing.RecipientID() == n.RecipientID() {
			return false, nil
		}
	}
	m.items = append(m.items, n)
	return true, nil
}

func (m *memNotificationRepo) FindLatestByRecipient(_ context.Context, recipientID uuid.UUID, limit int) ([]*notificationDomain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notificationDomain.Notification
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].RecipientID() == recipientID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memNotificationRepo) CountUnread(_ context.Context, recipientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.RecipientID() == recipientID && !item.IsRead() {
			n++
		}
	}
	return n, nil
}

func (m *memNotificationRepo) markRead(i int) {
	n := m.items[i]
	now := time.Now().UTC()
	m.items[i] = notificationDomain.Reconstruct(
		n.ID(), n.RecipientID(), n.Type(), n.Title(), n.Message(),
		n.ReservationID(), n.ListingID(), n.ActorID(), n.SourceEventID(),
		true, n.EmailSent(), n.CreatedAt(), &now,
	)
}

func (m *memNotificationRepo) MarkRead(_ context.Context, id, recipientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID() == id && item.RecipientID() == recipientID {
			m.markRead(i)
			return nil
		}
	}
	return domain.NewNotFoundError("Notification", id.String())
}

func (m *memNotificationRepo) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, item := range m.items {
		if item.RecipientID() == recipientID && !item.IsRead() {
			m.markRead(i)
			n++
		}
	}
	return n, nil
}

func (m *memNotificationRepo) MarkEmailSent(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[id] = true
	return nil
}

func (m *memNotificationRepo) all() []*notificationDomain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*notificationDomain.Notification(nil), m.items...)
}
