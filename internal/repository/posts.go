package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/debemdeboas/postboard/internal/model"
)

type JSONPostRepository struct { // implements PostRepository
	store DocumentStore

	mu     sync.Mutex
	loaded *Result[[]model.Post] // memoized first load, success or failure

	changeNotifier func(model.PostID)
	observer       OperationObserver
}

type Option func(*JSONPostRepository)

func WithObserver(o OperationObserver) Option {
	return func(r *JSONPostRepository) {
		r.observer = o
	}
}

func NewJSONPostRepository(store DocumentStore, opts ...Option) *JSONPostRepository {
	r := &JSONPostRepository{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *JSONPostRepository) SetChangeNotifier(notifier func(model.PostID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changeNotifier = notifier
}

func (r *JSONPostRepository) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = nil
	repoLogger.Info().Str("store", r.store.Name()).Msg("Post cache dropped")
}

func (r *JSONPostRepository) FetchAll(ctx context.Context) Result[[]model.Post] {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.ensureLoaded(ctx)
	if !res.Success {
		return res
	}
	return ok(res.Message, slices.Clone(res.Payload))
}

func (r *JSONPostRepository) FetchByID(ctx context.Context, id model.PostID) (model.Post, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.ensureLoaded(ctx)
	if i := indexOf(res.Payload, id); i >= 0 {
		return res.Payload[i], true
	}
	return model.Post{}, false
}

func (r *JSONPostRepository) Add(ctx context.Context, author, title, content string) Result[model.Post] {
	return r.mutate(ctx, OpAdd, func(posts []model.Post) ([]model.Post, model.Post, error) {
		post := model.Post{
			ID:      nextID(posts),
			Author:  author,
			Title:   title,
			Content: content,
			Like:    0,
		}
		return append(posts, post), post, nil
	})
}

func (r *JSONPostRepository) Update(ctx context.Context, id model.PostID, author, title, content string, like int) Result[model.Post] {
	return r.mutate(ctx, OpUpdate, func(posts []model.Post) ([]model.Post, model.Post, error) {
		i := indexOf(posts, id)
		if i < 0 {
			return nil, model.Post{}, postNotFound(id)
		}
		posts[i].Author = author
		posts[i].Title = title
		posts[i].Content = content
		posts[i].Like = like
		return posts, posts[i], nil
	})
}

func (r *JSONPostRepository) Delete(ctx context.Context, id model.PostID) Result[model.Post] {
	return r.mutate(ctx, OpDelete, func(posts []model.Post) ([]model.Post, model.Post, error) {
		i := indexOf(posts, id)
		if i < 0 {
			return nil, model.Post{}, postNotFound(id)
		}
		removed := posts[i]
		return slices.Delete(posts, i, i+1), removed, nil
	})
}

func (r *JSONPostRepository) Like(ctx context.Context, id model.PostID) Result[model.Post] {
	return r.mutate(ctx, OpLike, func(posts []model.Post) ([]model.Post, model.Post, error) {
		i := indexOf(posts, id)
		if i < 0 {
			return nil, model.Post{}, postNotFound(id)
		}
		posts[i].Like++
		return posts, posts[i], nil
	})
}

// mutate applies change to a copy of the cached collection and persists it. The cache
// is only replaced once the write succeeded, so it never runs ahead of the store.
func (r *JSONPostRepository) mutate(ctx context.Context, op string, change func([]model.Post) ([]model.Post, model.Post, error)) Result[model.Post] {
	res, notify := r.mutateLocked(ctx, op, change)
	r.observe(op, res.Success)

	if res.Success && notify != nil {
		notify(res.Payload.ID)
	}
	return res
}

func (r *JSONPostRepository) mutateLocked(ctx context.Context, op string, change func([]model.Post) ([]model.Post, model.Post, error)) (Result[model.Post], func(model.PostID)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := r.ensureLoaded(ctx)
	if !loaded.Success {
		return fail[model.Post](loaded.Message, loaded.err), nil
	}

	posts, post, err := change(slices.Clone(loaded.Payload))
	if err != nil {
		repoLogger.Debug().Err(err).Str("op", op).Msg("Post mutation rejected")
		return fail[model.Post](describeMutation(err), err), nil
	}

	if err := r.persist(ctx, posts); err != nil {
		repoLogger.Error().Err(err).Str("op", op).Str("store", r.store.Name()).Msg("Error writing posts")
		return fail[model.Post](describe(writing, err), err), nil
	}

	r.loaded.Payload = posts
	repoLogger.Info().Str("op", op).Int("post_id", int(post.ID)).Msg("Posts written")
	return ok(MsgWritten, post), r.changeNotifier
}

// ensureLoaded must be called with r.mu held.
func (r *JSONPostRepository) ensureLoaded(ctx context.Context) Result[[]model.Post] {
	if r.loaded != nil {
		return *r.loaded
	}

	res := r.load(ctx)
	r.observe(OpLoad, res.Success)
	// A load cut short by the caller says nothing about the store, so the next call retries.
	if !res.Success && (ctx.Err() != nil || errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)) {
		return res
	}
	r.loaded = &res
	return res
}

func (r *JSONPostRepository) load(ctx context.Context) Result[[]model.Post] {
	data, err := r.store.Load(ctx)
	if err != nil {
		repoLogger.Error().Err(err).Str("store", r.store.Name()).Msg("Error loading posts")
		return fail[[]model.Post](describe(reading, err), err)
	}

	var posts []model.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
		repoLogger.Error().Err(err).Str("store", r.store.Name()).Msg("Error decoding posts")
		return fail[[]model.Post](describe(reading, err), err)
	}
	if posts == nil {
		posts = []model.Post{}
	}

	repoLogger.Info().Str("store", r.store.Name()).Int("posts", len(posts)).Msg("Posts loaded")
	return ok(MsgLoaded, posts)
}

func (r *JSONPostRepository) persist(ctx context.Context, posts []model.Post) error {
	if posts == nil {
		posts = []model.Post{}
	}
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("%w: encoding posts: %w", ErrUnexpected, err)
	}
	return r.store.Save(ctx, data)
}

func (r *JSONPostRepository) observe(op string, success bool) {
	if r.observer != nil {
		r.observer.ObserveOperation(op, success)
	}
}

func indexOf(posts []model.Post, id model.PostID) int {
	return slices.IndexFunc(posts, func(p model.Post) bool { return p.ID == id })
}

// nextID is one past the highest id in use, or 1 for an empty collection.
func nextID(posts []model.Post) model.PostID {
	var highest model.PostID
	for _, p := range posts {
		highest = max(highest, p.ID)
	}
	return highest + 1
}
