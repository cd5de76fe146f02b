package kvstore

import (
	"context"
	"strings"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/friend"
)

type friendsDoc struct {
	Friends          []*friend.Friend `json:"friends"`
	SelectedCategory *friend.Category `json:"selectedCategory"`
}

func (d *friendsDoc) index(id string) int {
	for i, f := range d.Friends {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// FriendStore is the friend list of one account.
type FriendStore struct {
	doc   *document[friendsDoc]
	clock calendar.Clock
	newID func() string
}

func (s *FriendStore) Add(ctx context.Context, nf friend.NewFriend) (*friend.Friend, error) {
	f := &friend.Friend{
		ID:            s.newID(),
		Name:          nf.Name,
		PhotoURL:      nf.PhotoURL,
		Birthday:      nf.Birthday,
		FrequencyDays: nf.FrequencyDays,
		LastContactAt: nf.LastContactAt,
		Category:      nf.Category,
		CreatedAt:     s.clock.Now(),
	}
	err := s.doc.update(ctx, func(d *friendsDoc) error {
		d.Friends = append(d.Friends, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FriendStore) Remove(ctx context.Context, id string) error {
	return s.doc.update(ctx, func(d *friendsDoc) error {
		i := d.index(id)
		if i < 0 {
			return friend.ErrFriendNotFound
		}
		d.Friends = append(d.Friends[:i], d.Friends[i+1:]...)
		return nil
	})
}

// HasFriend matches the whole name, ignoring case.
func (s *FriendStore) HasFriend(ctx context.Context, name string) (bool, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range d.Friends {
		if strings.EqualFold(f.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *FriendStore) GetByID(ctx context.Context, id string) (*friend.Friend, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	i := d.index(id)
	if i < 0 {
		return nil, friend.ErrFriendNotFound
	}
	return d.Friends[i], nil
}

func (s *FriendStore) List(ctx context.Context) ([]*friend.Friend, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	return d.Friends, nil
}

func (s *FriendStore) LogCatchUp(ctx context.Context, id string) (*string, error) {
	var previous *string
	today := calendar.ToDateString(s.clock.Now())
	err := s.doc.update(ctx, func(d *friendsDoc) error {
		i := d.index(id)
		if i < 0 {
			return friend.ErrFriendNotFound
		}
		previous = d.Friends[i].LastContactAt
		d.Friends[i].LastContactAt = &today
		return nil
	})
	return previous, err
}

func (s *FriendStore) UndoCatchUp(ctx context.Context, id string, previous *string) error {
	return s.doc.update(ctx, func(d *friendsDoc) error {
		i := d.index(id)
		if i < 0 {
			return friend.ErrFriendNotFound
		}
		d.Friends[i].LastContactAt = previous
		return nil
	})
}

func (s *FriendStore) SelectedCategory(ctx context.Context) (*friend.Category, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	return d.SelectedCategory, nil
}

func (s *FriendStore) SetSelectedCategory(ctx context.Context, c *friend.Category) error {
	return s.doc.update(ctx, func(d *friendsDoc) error {
		d.SelectedCategory = c
		return nil
	})
}
