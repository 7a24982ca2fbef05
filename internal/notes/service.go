package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
)

var (
	ErrNotFound      = errors.New("note not found")
	ErrTitleRequired = errors.New("title is required")
)

const (
	defaultFolder   = "Untitled"
	defaultStatus   = "in development"
	defaultPriority = "medium"
)

type Note struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Tags         []string  `json:"tags"`
	Folder       string    `json:"folder"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	Version      int64     `json:"-"`
}

func (n *Note) DocKeys() store.Keys {
	return store.Keys{ID: n.ID, Owner: n.Owner, Version: n.Version}
}

func (n *Note) SetDocKeys(id string, version int64) {
	n.ID, n.Version = id, version
}

// Patch holds the fields of an update; nil fields keep their value.
type Patch struct {
	Title    *string
	Content  *string
	Tags     *[]string
	Folder   *string
	Status   *string
	Priority *string
}

type Service struct {
	notes *store.Collection[Note, *Note]
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{notes: store.NewCollection[Note](s, store.KindNotes), now: time.Now}
}

func (s *Service) Create(ctx context.Context, owner string, n Note) (Note, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return Note{}, ErrTitleRequired
	}
	now := s.now().UTC()
	n.ID = ""
	n.Owner = owner
	n.Folder = orDefault(n.Folder, defaultFolder)
	n.Status = orDefault(n.Status, defaultStatus)
	n.Priority = orDefault(n.Priority, defaultPriority)
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.CreatedAt = now
	n.LastModified = now
	if err := s.notes.Insert(ctx, &n); err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, owner string) ([]Note, error) {
	return s.notes.Find(ctx, store.Filter{Owner: owner})
}

func (s *Service) Get(ctx context.Context, owner, id string) (Note, error) {
	n, err := s.notes.FindOne(ctx, store.Filter{ID: id, Owner: owner})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Note{}, ErrNotFound
		}
		return Note{}, err
	}
	return n, nil
}

func (s *Service) Update(ctx context.Context, owner, id string, p Patch) (Note, error) {
	n, err := s.Get(ctx, owner, id)
	if err != nil {
		return Note{}, err
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return Note{}, ErrTitleRequired
		}
		n.Title = title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = *p.Tags
	}
	if p.Folder != nil {
		n.Folder = *p.Folder
	}
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.Priority != nil {
		n.Priority = *p.Priority
	}
	n.LastModified = s.now().UTC()
	ok, err := s.notes.Update(ctx, &n, false)
	if err != nil {
		return Note{}, fmt.Errorf("update note: %w", err)
	}
	if !ok {
		return Note{}, ErrNotFound
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	ok, err := s.notes.Delete(ctx, store.Filter{ID: id, Owner: owner})
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
