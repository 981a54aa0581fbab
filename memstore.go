package petalpress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory PostStore. It backs tests and storeless
// development runs with the same ordering and error semantics as the
// document database.
type MemStore struct {
	mu    sync.RWMutex
	posts map[string]Post
	now   func() time.Time
	seq   time.Duration // keeps CreatedAt strictly ordered within one clock tick
}

func NewMemStore() *MemStore {
	return &MemStore{
		posts: make(map[string]Post),
		now:   time.Now,
	}
}

func (s *MemStore) Ready(ctx context.Context) error { return nil }
func (s *MemStore) Close(ctx context.Context) error { return nil }

func (s *MemStore) list(published bool) []Post {
	var posts []Post
	for _, p := range s.posts {
		if published && !p.Published {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

func (s *MemStore) ListAll(ctx context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(false), nil
}

func (s *MemStore) ListPublished(ctx context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(true), nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (s *MemStore) Create(ctx context.Context, fields PostFields) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	now := s.now().UTC().Add(s.seq)
	p := Post{
		ID:        uuid.NewString(),
		Title:     fields.Title,
		Body:      fields.Body,
		Image:     fields.Image,
		Published: fields.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.posts[p.ID] = p
	return p, nil
}

func (s *MemStore) Update(ctx context.Context, id string, fields PostFields) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	p.Title = fields.Title
	p.Body = fields.Body
	p.Image = fields.Image
	p.Published = fields.Published
	p.UpdatedAt = s.now().UTC()
	if p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	s.posts[id] = p
	return p, nil
}

func (s *MemStore) SetPublished(ctx context.Context, id string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Published = published
	p.UpdatedAt = s.now().UTC()
	if p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	s.posts[id] = p
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}
