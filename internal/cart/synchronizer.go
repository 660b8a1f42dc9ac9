package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tcgmx/storefront-core/internal/domain"
	"github.com/tcgmx/storefront-core/internal/inventory"
	"github.com/tcgmx/storefront-core/internal/notify"
	"github.com/tcgmx/storefront-core/pkg/errors"
)

// CartService is the remote cart endpoints the synchronizer drives
type CartService interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddToCart(ctx context.Context, variantID int64, quantity int) (*domain.CartItem, error)
	ChangeLine(ctx context.Context, line, quantity int, sections []string, sectionsURL string) (*domain.ChangeResult, error)
}

// StockValidator guards add-to-cart intents against the inventory policy
type StockValidator interface {
	ValidateAdd(ctx context.Context, variantID int64, requested, inCart int) inventory.Verdict
}

// FragmentApplier receives the rendered section fragments after a successful
// change, before the cart-changed event fires. This replaces the old
// mutation-observer re-binding: callers splice the fragments in and re-run
// their bindings right here.
type FragmentApplier func(sections map[string]string)

// Config tunes the synchronizer timings and the sections requested from the
// cart service alongside each change
type Config struct {
	Sections    []string
	SectionsURL string
	// GracePeriod absorbs duplicate events fired for the same user action:
	// after a change settles, repeat intents for the same line inside this
	// window still count as busy
	GracePeriod time.Duration
	// BusyTimeout bounds how long an unresolved request may hold the busy
	// flag before it is forcibly cleared
	BusyTimeout time.Duration
}

// Synchronizer serializes every quantity-changing operation against the
// remote cart. At most one request is in flight; intents arriving while busy
// are dropped, not queued, trading a possible ignored double-click for
// in-order writes. One instance serves the whole page lifetime.
type Synchronizer struct {
	service   CartService
	validator StockValidator
	notifier  *notify.Notifier
	applier   FragmentApplier
	cfg       Config
	logger    *zap.Logger

	mu        sync.Mutex
	busy      bool
	busySince time.Time
	// generation is the ownership token for the busy flag. Every force-clear
	// increments it, invalidating the request that held the flag: a request
	// whose token no longer matches must discard its outcome.
	generation         uint64
	releasedAt         time.Time
	releasedLine       int
	lastKnownItemCount int64
	now                func() time.Time
}

// NewSynchronizer creates the single cart synchronizer for the page
func NewSynchronizer(service CartService, validator StockValidator, notifier *notify.Notifier, cfg Config, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = []string{"cart-drawer", "cart-icon-bubble"}
	}
	if cfg.SectionsURL == "" {
		cfg.SectionsURL = "/"
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 500 * time.Millisecond
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 10 * time.Second
	}
	return &Synchronizer{
		service:   service,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetFragmentApplier installs the apply-then-rebind hook for section fragments
func (s *Synchronizer) SetFragmentApplier(applier FragmentApplier) {
	s.mu.Lock()
	s.applier = applier
	s.mu.Unlock()
}

// LastKnownItemCount returns the last server-confirmed total item count
func (s *Synchronizer) LastKnownItemCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnownItemCount
}

// RequestQuantityChange translates one user intent into at most one update
// call. Quantity 0 removes the line through the same path. The displayed
// counter is reconciled only from the server-confirmed item count.
func (s *Synchronizer) RequestQuantityChange(ctx context.Context, line domain.CartLine, newQuantity int) (*domain.Cart, error) {
	if line.Index < 1 {
		return nil, s.fail(&errors.ErrValidation{Message: fmt.Sprintf("invalid cart line: %d", line.Index)})
	}
	if newQuantity < 0 {
		return nil, s.fail(&errors.ErrValidation{
			Message:       "quantity cannot be negative",
			RollbackValue: line.Quantity,
		})
	}

	// A removal is never a stock-limit problem, so the bound check applies
	// only to positive quantities
	if newQuantity > 0 && line.Bounded() && newQuantity > line.MaxQuantity {
		err := &errors.ErrValidation{
			Message:       fmt.Sprintf("No se puede añadir más de %d unidades de este producto", line.MaxQuantity),
			RollbackValue: line.Quantity,
			Remaining:     maxInt(0, line.MaxQuantity-line.Quantity),
		}
		return nil, s.fail(err)
	}

	token, err := s.acquire(line.Index)
	if err != nil {
		s.logger.Debug("Quantity change dropped while busy", zap.Int("line", line.Index))
		return nil, err
	}

	result, err := s.service.ChangeLine(ctx, line.Index, newQuantity, s.cfg.Sections, s.cfg.SectionsURL)
	if err != nil {
		if !s.release(line.Index, token) {
			// Timed out before failing; the force-clear already surfaced it
			return nil, s.staleOutcome(line.Index)
		}
		return nil, s.fail(err)
	}

	s.mu.Lock()
	if token != s.generation {
		s.mu.Unlock()
		return nil, s.staleOutcome(line.Index)
	}
	s.lastKnownItemCount = result.Cart.ItemCount
	applier := s.applier
	s.mu.Unlock()

	if applier != nil && len(result.Sections) > 0 {
		applier(result.Sections)
	}

	if newQuantity == 0 {
		s.notifier.Notify(notify.SeverityInfo, "Producto eliminado del carrito")
	}
	s.notifier.Publish(notify.Event{Kind: notify.EventCartChanged, Cart: &result.Cart})

	s.release(line.Index, token)
	return &result.Cart, nil
}

// AddToCart validates the intent against the inventory policy, performs the
// add, then re-fetches the cart so the counter reflects server state
func (s *Synchronizer) AddToCart(ctx context.Context, variantID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, s.fail(&errors.ErrValidation{Message: "quantity must be at least 1"})
	}

	token, err := s.acquire(0)
	if err != nil {
		s.logger.Debug("Add to cart dropped while busy", zap.Int64("variant_id", variantID))
		return nil, err
	}
	defer s.release(0, token)

	inCart := 0
	if current, err := s.service.GetCart(ctx); err == nil {
		inCart = current.QuantityOf(variantID)
	} else {
		s.logger.Warn("Could not read cart before add, validating against empty cart", zap.Error(err))
	}

	verdict := s.validator.ValidateAdd(ctx, variantID, quantity, inCart)
	if !verdict.Allowed {
		return nil, s.fail(&errors.ErrValidation{
			Message:   verdict.Message,
			Remaining: verdict.Remaining,
		})
	}
	if verdict.Warning != "" {
		s.notifier.Notify(notify.SeverityWarning, verdict.Warning)
	}

	item, err := s.service.AddToCart(ctx, variantID, quantity)
	if err != nil {
		return nil, s.fail(err)
	}

	title := item.ProductTitle
	if title == "" {
		title = "Producto"
	}

	cart, err := s.service.GetCart(ctx)
	if err != nil {
		// The add went through, only the refresh failed: report the add,
		// keep the last confirmed count, and hand back a stale-state error
		// instead of pretending the add itself failed
		s.notifier.Notify(notify.SeveritySuccess, fmt.Sprintf("%s añadido al carrito", title))
		s.notifier.Publish(notify.Event{Kind: notify.EventCartChanged})
		return nil, &errors.ErrStaleData{Source: "cart snapshot", Cause: err}
	}

	s.mu.Lock()
	if token == s.generation {
		s.lastKnownItemCount = cart.ItemCount
	}
	s.mu.Unlock()

	s.notifier.Notify(notify.SeveritySuccess, fmt.Sprintf("%s añadido al carrito", title))
	s.notifier.Publish(notify.Event{Kind: notify.EventCartChanged, Cart: cart})
	return cart, nil
}

// acquire moves the synchronizer to busy and hands back the ownership token,
// or reports why it cannot. A busy flag older than the timeout is forcibly
// cleared so a hung request cannot block the cart forever; the evicted
// request's token is invalidated and its failure surfaced right here.
func (s *Synchronizer) acquire(line int) (uint64, error) {
	s.mu.Lock()
	now := s.now()

	forced := false
	if s.busy {
		if now.Sub(s.busySince) > s.cfg.BusyTimeout {
			s.generation++
			forced = true
			s.logger.Warn("Busy flag exceeded timeout, forcing release",
				zap.Duration("age", now.Sub(s.busySince)),
			)
		} else {
			s.mu.Unlock()
			return 0, &errors.ErrBusy{Line: line}
		}
	}

	// Duplicate listeners tend to re-fire the same intent right after the
	// previous one settles; treat repeats for the same line as still busy
	// for a short grace period
	if line > 0 && line == s.releasedLine && now.Sub(s.releasedAt) < s.cfg.GracePeriod {
		s.mu.Unlock()
		return 0, &errors.ErrBusy{Line: line}
	}

	s.busy = true
	s.busySince = now
	token := s.generation
	s.mu.Unlock()

	if forced {
		s.fail(fmt.Errorf("cart update exceeded the %s busy timeout", s.cfg.BusyTimeout))
	}
	return token, nil
}

// release clears the busy flag if the caller still owns it. A false return
// means the flag was force-cleared mid-flight and now belongs to a newer
// request.
func (s *Synchronizer) release(line int, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		return false
	}
	s.busy = false
	s.releasedAt = s.now()
	s.releasedLine = line
	return true
}

// staleOutcome is the error for a request that resolved after losing its
// in-flight slot. The force-clear already raised the user-facing failure, so
// no second notice fires here.
func (s *Synchronizer) staleOutcome(line int) error {
	s.logger.Warn("Discarding outcome of a timed-out cart update", zap.Int("line", line))
	return &errors.ErrStaleData{
		Source: "cart change",
		Cause:  fmt.Errorf("request outlived the busy timeout"),
	}
}

// fail converts an error into a user-visible notice and the failure event,
// then hands it back to the caller. No error escapes without a notice.
func (s *Synchronizer) fail(err error) error {
	message := "Error al actualizar el carrito"
	if vErr, ok := err.(*errors.ErrValidation); ok && vErr.Message != "" {
		message = vErr.Message
	}
	s.notifier.Notify(notify.SeverityError, message)
	s.notifier.Publish(notify.Event{
		Kind:    notify.EventCartChangeFailed,
		Message: message,
		Cause:   err.Error(),
	})
	return err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
