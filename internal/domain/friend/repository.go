package friend

import "context"

// Repository persists one account's friend list.
type Repository interface {
	Add(ctx context.Context, nf NewFriend) (*Friend, error)
	Remove(ctx context.Context, id string) error
	HasFriend(ctx context.Context, name string) (bool, error)
	GetByID(ctx context.Context, id string) (*Friend, error)
	List(ctx context.Context) ([]*Friend, error)

	// LogCatchUp sets the friend's last contact to today and returns the
	// previous value so the change can be undone.
	LogCatchUp(ctx context.Context, id string) (previous *string, err error)
	UndoCatchUp(ctx context.Context, id string, previous *string) error

	SelectedCategory(ctx context.Context) (*Category, error)
	SetSelectedCategory(ctx context.Context, c *Category) error
}
