package todos

import "context"

// Repository is the persistence collaborator. Create assigns the list id.
// Watch subscribes onSnapshot to every change of the owner's collection and
// returns once the subscription is live; it ends when ctx is cancelled.
type Repository interface {
	Create(ctx context.Context, ownerID string, list TodoList) (string, error)
	Update(ctx context.Context, ownerID string, list TodoList) error
	Delete(ctx context.Context, ownerID, listID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]TodoList, error)
	Watch(ctx context.Context, ownerID string, onSnapshot func([]TodoList)) error
}
