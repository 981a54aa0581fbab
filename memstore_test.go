package petalpress

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreOrdering(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "First", "Second", "Third")

	posts, err := store.ListPublished(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}
	if posts[0].Title != "Third" || posts[2].Title != "First" {
		t.Fatalf("order = [%s %s %s], want newest first", posts[0].Title, posts[1].Title, posts[2].Title)
	}
	for i := 1; i < len(posts); i++ {
		if !posts[i-1].CreatedAt.After(posts[i].CreatedAt) {
			t.Fatalf("CreatedAt not strictly descending at %d", i)
		}
	}
}

func TestMemStoreListAllIncludesDrafts(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Published")
	if _, err := store.Create(context.Background(), PostFields{Title: "Draft", Body: "b"}); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	published, err := store.ListPublished(context.Background())
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(all) != 2 || len(published) != 1 {
		t.Fatalf("all = %d, published = %d; want 2 and 1", len(all), len(published))
	}
}

func TestMemStoreUpdate(t *testing.T) {
	store := NewMemStore()
	p := seedPosts(t, store, "Before")[0]

	updated, err := store.Update(context.Background(), p.ID, PostFields{
		Title: "After", Body: "new body", Published: false,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "After" || updated.Published {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.CreatedAt != p.CreatedAt {
		t.Fatal("update changed CreatedAt")
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Fatal("UpdatedAt before CreatedAt")
	}
}

func TestMemStoreNotFound(t *testing.T) {
	store := NewMemStore()

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := store.Update(context.Background(), "nope", PostFields{Title: "t", Body: "b"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update error = %v, want ErrNotFound", err)
	}
	if err := store.SetPublished(context.Background(), "nope", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetPublished error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemStoreSetPublished(t *testing.T) {
	store := NewMemStore()
	p, err := store.Create(context.Background(), PostFields{Title: "Draft", Body: "b"})
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SetPublished(context.Background(), p.ID, true); err != nil {
		t.Fatalf("set published: %v", err)
	}
	got, err := store.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Published {
		t.Fatal("post not published")
	}
	if got.Title != "Draft" || got.Body != "b" {
		t.Fatalf("publish rewrote other fields: %+v", got)
	}
}

func TestMemStoreDelete(t *testing.T) {
	store := NewMemStore()
	p := seedPosts(t, store, "Doomed")[0]

	if err := store.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(context.Background(), p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("post survived delete")
	}
}
