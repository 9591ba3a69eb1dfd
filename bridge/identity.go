package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/lesson-bridge/logger"
)

// IdentityResolver maps a booking-system customer to a course-system user.
// An unknown customer is reported as (0, false, nil).
type IdentityResolver interface {
	ResolveUser(ctx context.Context, customer CustomerID) (UserID, bool, error)
}

// CachingResolver resolves through the stored customer link first and falls
// back to matching the customer's e-mail against user accounts. A successful
// e-mail match is stored as a link so the next lookup is direct.
type CachingResolver struct {
	dir CustomerDirectory
	log *logger.Logger
}

// NewCachingResolver creates a resolver over the customer directory.
func NewCachingResolver(dir CustomerDirectory, log *logger.Logger) *CachingResolver {
	if log == nil {
		log = logger.Nop()
	}
	return &CachingResolver{dir: dir, log: log}
}

// ResolveUser implements IdentityResolver.
func (r *CachingResolver) ResolveUser(ctx context.Context, customer CustomerID) (UserID, bool, error) {
	if customer <= 0 {
		return 0, false, nil
	}

	user, ok, err := r.dir.LinkedUser(ctx, customer)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up customer link %d: %w", customer, err)
	}
	if ok && user > 0 {
		return user, true, nil
	}

	email, ok, err := r.dir.CustomerEmail(ctx, customer)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up customer %d: %w", customer, err)
	}
	email = strings.TrimSpace(email)
	if !ok || email == "" {
		return 0, false, nil
	}

	user, ok, err = r.dir.UserByEmail(ctx, email)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if !ok || user <= 0 {
		return 0, false, nil
	}

	if err := r.dir.LinkCustomer(ctx, customer, user); err != nil {
		// The user is known; a failed link only costs a slower lookup next time.
		r.log.Warn("failed to store customer link", "customer_id", customer, "user_id", user, "error", err)
	} else {
		r.log.Info("linked customer to user", "customer_id", customer, "user_id", user, "email", email)
	}
	return user, true, nil
}
