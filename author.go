package petalpress

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// WorkflowState tracks the one in-progress draft.
type WorkflowState int

const (
	// StateIdle: no post is being edited.
	StateIdle WorkflowState = iota
	// StateCreating: a blank form is open.
	StateCreating
	// StateEditing: an existing post is loaded into the form.
	StateEditing
)

// ErrValidation is returned by Submit when required fields are missing.
// It never reaches the store.
var ErrValidation = errors.New("title and body are required")

// ErrNotConfirmed is returned by Delete when the confirmation step is
// declined.
var ErrNotConfirmed = errors.New("deletion not confirmed")

// Notifier is the notification collaborator: every terminal outcome of
// create/update/publish/delete emits through it.
type Notifier interface {
	Notify(severity Severity, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(severity Severity, message string)

func (f NotifierFunc) Notify(severity Severity, message string) { f(severity, message) }

// Confirmer gates irreversible operations behind an explicit yes/no step.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, message string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

type confirmKey struct{}

// WithConfirmation marks ctx as carrying an explicit yes from the user.
// ContextConfirmer reads it; request handlers set it when the form says so.
func WithConfirmation(ctx context.Context) context.Context {
	return context.WithValue(ctx, confirmKey{}, true)
}

// ContextConfirmer answers from the request context: confirmed only when
// WithConfirmation was applied.
func ContextConfirmer() Confirmer {
	return ConfirmerFunc(func(ctx context.Context, _ string) bool {
		ok, _ := ctx.Value(confirmKey{}).(bool)
		return ok
	})
}

// Workflow lets the authenticated owner create, edit, publish, and delete
// posts. It holds at most one in-progress draft and signals the public
// viewer after every successful mutation.
type Workflow struct {
	store    PostStore
	notifier Notifier
	confirm  Confirmer
	images   *ImageSet
	onChange func() // viewer refresh signal; may be nil
	log      zerolog.Logger

	mu        sync.Mutex
	state     WorkflowState
	editingID string
	draft     PostFields
}

func NewWorkflow(store PostStore, notifier Notifier, confirm Confirmer, images *ImageSet, onChange func(), log zerolog.Logger) *Workflow {
	return &Workflow{
		store:    store,
		notifier: notifier,
		confirm:  confirm,
		images:   images,
		onChange: onChange,
		log:      log,
	}
}

// Show opens the management view: the full managed list, drafts included.
// It behaves identically whether invoked right after login or from any
// other trigger.
func (w *Workflow) Show(ctx context.Context) ([]Post, error) {
	posts, err := w.store.ListAll(ctx)
	if err != nil {
		w.notifier.Notify(SeverityError, "Error loading posts. Please refresh and try again.")
		return nil, err
	}
	return posts, nil
}

// State returns the current draft state and, when editing, the post id.
func (w *Workflow) State() (WorkflowState, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.editingID
}

// Draft returns the current form contents.
func (w *Workflow) Draft() PostFields {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// StartCreate opens a blank form.
func (w *Workflow) StartCreate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateCreating
	w.editingID = ""
	w.draft = PostFields{}
}

// StartEdit loads an existing post into the form.
func (w *Workflow) StartEdit(ctx context.Context, id string) (Post, error) {
	post, err := w.store.Get(ctx, id)
	if err != nil {
		w.notifier.Notify(SeverityError, "Error loading post. Please try again.")
		return Post{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateEditing
	w.editingID = post.ID
	w.draft = PostFields{
		Title:     post.Title,
		Body:      post.Body,
		Image:     post.Image,
		Published: post.Published,
	}
	return post, nil
}

// Cancel discards any unsaved form content. There is no autosave.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateIdle
	w.editingID = ""
	w.draft = PostFields{}
}

// Submit validates and saves the form. On success the workflow returns to
// Idle and signals a refresh; on failure it stays in its current state so
// the owner can retry without losing the form contents.
func (w *Workflow) Submit(ctx context.Context, fields PostFields) (Post, error) {
	if strings.TrimSpace(fields.Title) == "" || strings.TrimSpace(fields.Body) == "" {
		w.notifier.Notify(SeverityError, "Title and body are required.")
		return Post{}, ErrValidation
	}
	if fields.Image != "" && !w.images.Has(fields.Image) {
		w.notifier.Notify(SeverityError, "Unknown image: "+fields.Image)
		return Post{}, ErrValidation
	}

	w.mu.Lock()
	state, id := w.state, w.editingID
	w.draft = fields
	w.mu.Unlock()

	var post Post
	var err error
	if state == StateEditing {
		post, err = w.store.Update(ctx, id, fields)
	} else {
		post, err = w.store.Create(ctx, fields)
	}
	if err != nil {
		w.log.Error().Err(err).Str("state", stateName(state)).Msg("save post failed")
		w.notifier.Notify(SeverityError, "Error saving blog post. Please try again.")
		return Post{}, err
	}

	w.mu.Lock()
	w.state = StateIdle
	w.editingID = ""
	w.draft = PostFields{}
	w.mu.Unlock()

	if state == StateEditing {
		w.notifier.Notify(SeveritySuccess, "Blog post updated successfully!")
	} else {
		w.notifier.Notify(SeveritySuccess, "Blog post created successfully!")
	}
	w.signalChange()
	return post, nil
}

// TogglePublish flips visibility on a specific post in a single store
// call, independent of the edit state.
func (w *Workflow) TogglePublish(ctx context.Context, id string, publish bool) error {
	if err := w.store.SetPublished(ctx, id, publish); err != nil {
		w.notifier.Notify(SeverityError, "Error updating post. Please try again.")
		return err
	}
	if publish {
		w.notifier.Notify(SeveritySuccess, "Post published successfully!")
	} else {
		w.notifier.Notify(SeveritySuccess, "Post unpublished successfully!")
	}
	w.signalChange()
	return nil
}

// Delete permanently removes a post after an explicit confirmation step.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if !w.confirm.Confirm(ctx, "Are you sure you want to delete this post? This action cannot be undone.") {
		return ErrNotConfirmed
	}
	if err := w.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			w.notifier.Notify(SeverityWarning, "Post was already deleted.")
			return err
		}
		w.notifier.Notify(SeverityError, "Error deleting post. Please try again.")
		return err
	}
	w.notifier.Notify(SeveritySuccess, "Post deleted successfully!")
	w.signalChange()
	return nil
}

func (w *Workflow) signalChange() {
	if w.onChange != nil {
		w.onChange()
	}
}

func stateName(s WorkflowState) string {
	switch s {
	case StateCreating:
		return "creating"
	case StateEditing:
		return "editing"
	default:
		return "idle"
	}
}
