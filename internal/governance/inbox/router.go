// Package inbox routes pending purchase requests to the users who must
// act on them next.
//
// A request lives in at most one queue per user at a time: the approver
// queue while a regular step awaits decisions, the finance queue while
// the request sits in FINANCE_REVIEW, and the requestor queue while the
// requestor has to draft, fix, or resubmit. Holding several qualifying
// roles never duplicates an entry.
package inbox

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/repository"
)

// Router answers the per-user work queues.
type Router struct {
	store repository.Store
}

// NewRouter creates a Router over the store.
func NewRouter(store repository.Store) *Router {
	return &Router{store: store}
}

// Approver returns requests parked at a step naming one of the user's
// roles, excluding those the user already decided on in the current
// submission cycle. FINANCE_REVIEW requests are served by Finance, not
// here, so no request faces a user through two queues at once.
func (r *Router) Approver(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	reqs, err := r.store.Requests().ApproverInbox(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("approver inbox of %s: %w", userID, err)
	}
	return reqs, nil
}

// Finance returns FINANCE_REVIEW requests whose finance step names a role
// the user holds on the request's team.
func (r *Router) Finance(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	reqs, err := r.store.Requests().FinanceInbox(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("finance inbox of %s: %w", userID, err)
	}
	return reqs, nil
}

// Requestor returns the user's own requests waiting on them: drafts not
// yet submitted and rejected requests awaiting rework.
func (r *Router) Requestor(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	reqs, err := r.store.Requests().ListByRequestor(ctx, userID, []domain.Status{
		domain.StatusDraft,
		domain.StatusRejected,
	})
	if err != nil {
		return nil, fmt.Errorf("requestor inbox of %s: %w", userID, err)
	}
	return reqs, nil
}

// Counts carries the queue sizes for inbox badges.
type Counts struct {
	Approver  int `json:"approver"`
	Finance   int `json:"finance"`
	Requestor int `json:"requestor"`
}

// CountAll returns the sizes of all three queues for the user.
func (r *Router) CountAll(ctx context.Context, userID string) (*Counts, error) {
	approver, err := r.Approver(ctx, userID)
	if err != nil {
		return nil, err
	}
	finance, err := r.Finance(ctx, userID)
	if err != nil {
		return nil, err
	}
	requestor, err := r.Requestor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Counts{
		Approver:  len(approver),
		Finance:   len(finance),
		Requestor: len(requestor),
	}, nil
}
