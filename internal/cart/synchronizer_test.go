package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcgmx/storefront-core/internal/domain"
	"github.com/tcgmx/storefront-core/internal/inventory"
	"github.com/tcgmx/storefront-core/internal/notify"
	"github.com/tcgmx/storefront-core/pkg/errors"
)

type fakeService struct {
	mu          sync.Mutex
	cart        domain.Cart
	cartErr     error
	changeCalls int
	changeErr   error
	addCalls    int
	addErr      error
	sections    map[string]string
	blockOn     map[int]chan struct{} // ChangeLine call N waits until its channel closes
	cartOnCall  map[int]domain.Cart   // per-call response override
}

func (f *fakeService) GetCart(ctx context.Context) (*domain.Cart, error) {
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	cart := f.cart
	return &cart, nil
}

func (f *fakeService) AddToCart(ctx context.Context, variantID int64, quantity int) (*domain.CartItem, error) {
	f.mu.Lock()
	f.addCalls++
	f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &domain.CartItem{VariantID: variantID, Quantity: quantity, ProductTitle: "White Flare ETB"}, nil
}

func (f *fakeService) ChangeLine(ctx context.Context, line, quantity int, sections []string, sectionsURL string) (*domain.ChangeResult, error) {
	f.mu.Lock()
	f.changeCalls++
	call := f.changeCalls
	block := f.blockOn[call]
	cart := f.cart
	if override, ok := f.cartOnCall[call]; ok {
		cart = override
	}
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	return &domain.ChangeResult{Cart: cart, Sections: f.sections}, nil
}

func (f *fakeService) calls() (change, add int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changeCalls, f.addCalls
}

type allowAll struct{}

func (allowAll) ValidateAdd(ctx context.Context, variantID int64, requested, inCart int) inventory.Verdict {
	return inventory.Verdict{Allowed: true, Remaining: requested}
}

type denyAll struct {
	message   string
	remaining int
}

func (d denyAll) ValidateAdd(ctx context.Context, variantID int64, requested, inCart int) inventory.Verdict {
	return inventory.Verdict{Message: d.message, Remaining: d.remaining}
}

func newTestSynchronizer(service CartService, validator StockValidator) (*Synchronizer, *notify.Notifier) {
	notifier := notify.NewNotifier(time.Minute, nil)
	if validator == nil {
		validator = allowAll{}
	}
	syncer := NewSynchronizer(service, validator, notifier, Config{}, nil)
	return syncer, notifier
}

func TestRequestQuantityChange_ReconcilesFromServerCount(t *testing.T) {
	service := &fakeService{
		cart:     domain.Cart{ItemCount: 7, Items: []domain.CartItem{{VariantID: 111, Quantity: 7}}},
		sections: map[string]string{"cart-drawer": "<div/>"},
	}
	syncer, notifier := newTestSynchronizer(service, nil)

	var events []notify.Event
	notifier.Subscribe(notify.EventCartChanged, func(e notify.Event) { events = append(events, e) })

	var applied map[string]string
	syncer.SetFragmentApplier(func(sections map[string]string) { applied = sections })

	cart, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 6}, 7)

	require.NoError(t, err)
	assert.Equal(t, int64(7), cart.ItemCount)
	assert.Equal(t, int64(7), syncer.LastKnownItemCount())
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].Cart.ItemCount)
	assert.Equal(t, "<div/>", applied["cart-drawer"])
}

func TestRequestQuantityChange_SecondIntentWhileBusyIsDropped(t *testing.T) {
	blocked := make(chan struct{})
	service := &fakeService{cart: domain.Cart{ItemCount: 2}, blockOn: map[int]chan struct{}{1: blocked}}
	syncer, _ := newTestSynchronizer(service, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 1}, 2)
		assert.NoError(t, err)
	}()

	// Wait for the first request to be in flight
	require.Eventually(t, func() bool {
		change, _ := service.calls()
		return change == 1
	}, time.Second, 5*time.Millisecond)

	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 1}, 2)
	var busyErr *errors.ErrBusy
	require.ErrorAs(t, err, &busyErr)

	close(blocked)
	wg.Wait()

	change, _ := service.calls()
	assert.Equal(t, 1, change, "exactly one network call for two rapid intents")
}

func TestRequestQuantityChange_GracePeriodAbsorbsRepeatsForSameLine(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 2}}
	syncer, _ := newTestSynchronizer(service, nil)

	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 1}, 2)
	require.NoError(t, err)

	// Same line inside the grace window: treated as still updating
	_, err = syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 2}, 3)
	var busyErr *errors.ErrBusy
	require.ErrorAs(t, err, &busyErr)

	// A different line is not affected
	_, err = syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 2, Quantity: 1}, 2)
	require.NoError(t, err)

	change, _ := service.calls()
	assert.Equal(t, 2, change)
}

func TestRequestQuantityChange_ZeroIsRemovalEvenAboveMax(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 0}}
	syncer, notifier := newTestSynchronizer(service, nil)

	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 3, MaxQuantity: 2}, 0)

	require.NoError(t, err)
	change, _ := service.calls()
	assert.Equal(t, 1, change)
	for _, notice := range notifier.ActiveNotices() {
		assert.NotContains(t, notice.Message, "unidades de este producto")
	}
}

func TestRequestQuantityChange_AboveMaxRejectedLocally(t *testing.T) {
	service := &fakeService{}
	syncer, notifier := newTestSynchronizer(service, nil)

	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 2, MaxQuantity: 4}, 5)

	var vErr *errors.ErrValidation
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 2, vErr.RollbackValue)
	assert.Equal(t, 2, vErr.Remaining)

	change, _ := service.calls()
	assert.Zero(t, change, "no network call for locally rejected intents")
	require.NotEmpty(t, notifier.ActiveNotices())
}

func TestRequestQuantityChange_TransportErrorKeepsConfirmedCount(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 5}}
	syncer, notifier := newTestSynchronizer(service, nil)

	// Seed a confirmed count
	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 4}, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), syncer.LastKnownItemCount())

	var failures []notify.Event
	notifier.Subscribe(notify.EventCartChangeFailed, func(e notify.Event) { failures = append(failures, e) })

	service.changeErr = &errors.ErrTransport{Op: "POST /cart/change.js", Status: 502}
	_, err = syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 2, Quantity: 5}, 6)

	var transportErr *errors.ErrTransport
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, int64(5), syncer.LastKnownItemCount(), "count stays at last confirmed value")
	require.Len(t, failures, 1)
	assert.NotEmpty(t, failures[0].Cause)

	// The synchronizer is available again after the failure
	service.changeErr = nil
	_, err = syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 3, Quantity: 1}, 2)
	assert.NoError(t, err)
}

func TestRequestQuantityChange_BusyTimeoutForcesRelease(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 1}}
	syncer, _ := newTestSynchronizer(service, nil)

	// Simulate a request that never resolved by aging the busy flag past
	// the timeout
	syncer.mu.Lock()
	syncer.busy = true
	syncer.busySince = time.Now().Add(-time.Minute)
	syncer.mu.Unlock()

	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 1}, 2)
	assert.NoError(t, err)
}

func TestRequestQuantityChange_TimedOutRequestCannotClobberNewerState(t *testing.T) {
	firstCall := make(chan struct{})
	service := &fakeService{
		cart:       domain.Cart{ItemCount: 9},
		blockOn:    map[int]chan struct{}{1: firstCall},
		cartOnCall: map[int]domain.Cart{1: {ItemCount: 1}},
	}
	syncer, notifier := newTestSynchronizer(service, nil)

	var failures []notify.Event
	notifier.Subscribe(notify.EventCartChangeFailed, func(e notify.Event) { failures = append(failures, e) })

	var applied []map[string]string
	syncer.SetFragmentApplier(func(sections map[string]string) { applied = append(applied, sections) })

	firstErr := make(chan error, 1)
	go func() {
		_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 1}, 2)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		change, _ := service.calls()
		return change == 1
	}, time.Second, 5*time.Millisecond)

	// Age the hung request past the busy timeout
	syncer.mu.Lock()
	syncer.busySince = time.Now().Add(-time.Minute)
	syncer.mu.Unlock()

	cart, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 2, Quantity: 8}, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), cart.ItemCount)
	require.Len(t, failures, 1, "force-clearing the hung request surfaces a failure")

	// The hung request finally resolves: its outcome is discarded
	close(firstCall)
	var staleErr *errors.ErrStaleData
	require.ErrorAs(t, <-firstErr, &staleErr)
	assert.Equal(t, int64(9), syncer.LastKnownItemCount(), "stale response never moves the confirmed count")
	assert.Empty(t, applied, "stale response never reaches the fragment applier")
	require.Len(t, failures, 1, "no second failure for the already-reported timeout")
}

func TestRequestQuantityChange_StaleReleaseDoesNotFreeNewerRequest(t *testing.T) {
	firstCall := make(chan struct{})
	secondCall := make(chan struct{})
	service := &fakeService{
		cart:    domain.Cart{ItemCount: 4},
		blockOn: map[int]chan struct{}{1: firstCall, 2: secondCall},
	}
	syncer, _ := newTestSynchronizer(service, nil)

	results := make(chan error, 2)
	go func() {
		_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 1}, 2)
		results <- err
	}()
	require.Eventually(t, func() bool {
		change, _ := service.calls()
		return change == 1
	}, time.Second, 5*time.Millisecond)

	syncer.mu.Lock()
	syncer.busySince = time.Now().Add(-time.Minute)
	syncer.mu.Unlock()

	go func() {
		_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 2, Quantity: 3}, 4)
		results <- err
	}()
	require.Eventually(t, func() bool {
		change, _ := service.calls()
		return change == 2
	}, time.Second, 5*time.Millisecond)

	// The evicted request resolves while the second is still in flight; its
	// release must not clear the flag the second request now owns
	close(firstCall)
	var staleErr *errors.ErrStaleData
	require.ErrorAs(t, <-results, &staleErr)

	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 3, Quantity: 1}, 2)
	var busyErr *errors.ErrBusy
	require.ErrorAs(t, err, &busyErr, "still exactly one request in flight")

	close(secondCall)
	require.NoError(t, <-results)
	assert.Equal(t, int64(4), syncer.LastKnownItemCount())
}

func TestAddToCart_ValidatesBeforeNetwork(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 2, Items: []domain.CartItem{{VariantID: 111, Quantity: 2}}}}
	syncer, notifier := newTestSynchronizer(service, denyAll{message: "Ya tienes la cantidad máxima disponible", remaining: 0})

	_, err := syncer.AddToCart(context.Background(), 111, 1)

	var vErr *errors.ErrValidation
	require.ErrorAs(t, err, &vErr)
	_, add := service.calls()
	assert.Zero(t, add)
	require.NotEmpty(t, notifier.ActiveNotices())
}

func TestAddToCart_SuccessReconcilesAndNotifies(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 3, Items: []domain.CartItem{{VariantID: 111, Quantity: 3}}}}
	syncer, notifier := newTestSynchronizer(service, nil)

	var events []notify.Event
	notifier.Subscribe(notify.EventCartChanged, func(e notify.Event) { events = append(events, e) })

	cart, err := syncer.AddToCart(context.Background(), 111, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(3), cart.ItemCount)
	assert.Equal(t, int64(3), syncer.LastKnownItemCount())
	require.Len(t, events, 1)

	found := false
	for _, notice := range notifier.ActiveNotices() {
		if notice.Severity == notify.SeveritySuccess {
			found = true
		}
	}
	assert.True(t, found, "success notice raised")
}

func TestAddToCart_FailedRefreshStillReportsTheAdd(t *testing.T) {
	service := &fakeService{cart: domain.Cart{ItemCount: 3}}
	syncer, notifier := newTestSynchronizer(service, nil)

	// Seed a confirmed count, then make every cart read fail
	_, err := syncer.RequestQuantityChange(context.Background(), domain.CartLine{Index: 1, Quantity: 2}, 3)
	require.NoError(t, err)
	service.cartErr = &errors.ErrTransport{Op: "GET /cart.js", Status: 502}

	var changed, failed []notify.Event
	notifier.Subscribe(notify.EventCartChanged, func(e notify.Event) { changed = append(changed, e) })
	notifier.Subscribe(notify.EventCartChangeFailed, func(e notify.Event) { failed = append(failed, e) })

	_, err = syncer.AddToCart(context.Background(), 111, 1)

	var staleErr *errors.ErrStaleData
	require.ErrorAs(t, err, &staleErr, "the add succeeded, only the refresh failed")
	_, add := service.calls()
	assert.Equal(t, 1, add)
	require.Len(t, changed, 1, "the cart did change server-side")
	assert.Empty(t, failed)
	assert.Equal(t, int64(3), syncer.LastKnownItemCount(), "unconfirmed count stays put")

	found := false
	for _, notice := range notifier.ActiveNotices() {
		if notice.Severity == notify.SeveritySuccess {
			found = true
		}
	}
	assert.True(t, found, "the completed add is still reported")
}
