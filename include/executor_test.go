package include

import (
	"context"
	"errors"
	"testing"

	"github.com/dubeme/eagerload/metadata"
	"github.com/dubeme/eagerload/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves collection items by op id and zero-filled slot arrays
// unless a slots func is installed. With async set it serves channel-backed
// sequences instead of slice-backed ones.
type fakeSource struct {
	collections map[int][]metadata.Record
	slots       func(plan *Plan, owner metadata.Record) []any
	async       bool
}

func (f *fakeSource) Slots(ctx context.Context, plan *Plan, owner metadata.Record) ([]any, error) {
	if f.slots == nil {
		return make([]any, plan.Slots), nil
	}
	return f.slots(plan, owner), nil
}

func (f *fakeSource) Collection(ctx context.Context, op *CollectionOp, owner metadata.Record) (Sequence, error) {
	items := f.collections[op.ID]
	if f.async {
		ch := make(chan Result, len(items))
		for _, item := range items {
			ch <- Result{Item: item}
		}
		close(ch)
		return NewChanSequence(ch, nil), nil
	}
	return NewSliceSequence(items), nil
}

func TestApplyReferenceUntracked(t *testing.T) {
	m := newModel(t)

	tree := NewTree(m.blog)
	tree.Child(m.owner)
	plan := Compile(tree, Options{})

	blog := metadata.Record{"id": 1, "ownerId": 2}
	user := metadata.Record{"id": 2, "name": "ada"}

	exec := NewExecutor(nil, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, blog, []any{user}))

	assert.Equal(t, user, blog["owner"])
}

func TestApplyReferenceNullSlotShortCircuits(t *testing.T) {
	m := newModel(t)

	ownerWrites, countryWrites := 0, 0
	baseOwnerSet, baseCountrySet := m.owner.Set, m.userCountry.Set
	m.owner.Set = func(owner metadata.Record, value any) { ownerWrites++; baseOwnerSet(owner, value) }
	m.userCountry.Set = func(owner metadata.Record, value any) { countryWrites++; baseCountrySet(owner, value) }

	tree := NewTree(m.blog)
	tree.Child(m.owner).Child(m.userCountry)
	plan := Compile(tree, Options{})

	blog := metadata.Record{"id": 1}
	country := metadata.Record{"id": 3}

	exec := NewExecutor(nil, nil, nil)
	// Slot 0 is absent, so nothing in the subtree may run even though slot 1
	// holds a value
	require.NoError(t, exec.Apply(context.Background(), plan, blog, []any{nil, country}))

	assert.Equal(t, 0, ownerWrites)
	assert.Equal(t, 0, countryWrites)
	assert.NotContains(t, blog, "owner")
}

func TestApplyReferenceTypedNilSlot(t *testing.T) {
	// A typed-nil record in a slot short-circuits like the nil sentinel; the
	// inverse fixup in particular must never write into a nil map
	m := newModel(t)

	tree := NewTree(m.post)
	tree.Child(m.postBlog)
	plan := Compile(tree, Options{})

	post := metadata.Record{"id": 10, "blogId": 1}

	exec := NewExecutor(nil, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, post, []any{metadata.Record(nil)}))

	assert.NotContains(t, post, "blog")
}

func TestApplyReferenceTracked(t *testing.T) {
	m := newModel(t)

	setterCalls := 0
	baseSet := m.owner.Set
	m.owner.Set = func(owner metadata.Record, value any) { setterCalls++; baseSet(owner, value) }

	tree := NewTree(m.blog)
	tree.Child(m.owner)
	plan := Compile(tree, Options{Tracked: true})

	blog := metadata.Record{"id": 1, "ownerId": 2}
	user := metadata.Record{"id": 2}

	tracker := tracking.NewTracker()
	_, err := tracker.Track(m.blog, blog)
	require.NoError(t, err)

	exec := NewExecutor(tracker, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, blog, []any{user}))

	// The related object is registered before the snapshot references it
	userEntry, ok := tracker.Entry(m.user, user)
	assert.True(t, ok)
	assert.NotNil(t, userEntry)

	blogEntry, ok := tracker.Entry(m.blog, blog)
	require.True(t, ok)
	snap, ok := blogEntry.RelationSnapshot(m.owner)
	assert.True(t, ok)
	assert.Equal(t, user, snap)

	// Graph shape matches the untracked mode, but the descriptor setter is
	// never invoked
	assert.Equal(t, user, blog["owner"])
	assert.Equal(t, 0, setterCalls)
}

func TestApplyTrackedUntrackedOwner(t *testing.T) {
	m := newModel(t)

	tree := NewTree(m.blog)
	tree.Child(m.owner)
	plan := Compile(tree, Options{Tracked: true})

	blog := metadata.Record{"id": 1}
	user := metadata.Record{"id": 2}

	exec := NewExecutor(tracking.NewTracker(), nil, nil)
	err := exec.Apply(context.Background(), plan, blog, []any{user})

	require.Error(t, err)
	assert.True(t, errors.Is(err, tracking.ErrUntrackedOwner))
}

func TestApplyTrackedWithoutTracker(t *testing.T) {
	m := newModel(t)

	tree := NewTree(m.blog)
	tree.Child(m.owner)
	plan := Compile(tree, Options{Tracked: true})

	exec := NewExecutor(nil, nil, nil)
	err := exec.Apply(context.Background(), plan, metadata.Record{"id": 1}, []any{metadata.Record{"id": 2}})

	assert.ErrorContains(t, err, "no tracker configured")
}

func TestInverseFixupCollectionUntracked(t *testing.T) {
	// Post.blog has the collection inverse Blog.posts: fixing up the
	// reference appends the post to the blog's posts
	m := newModel(t)

	tree := NewTree(m.post)
	tree.Child(m.postBlog)
	plan := Compile(tree, Options{})

	post := metadata.Record{"id": 10, "blogId": 1}
	blog := metadata.Record{"id": 1}

	exec := NewExecutor(nil, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, post, []any{blog}))

	assert.Equal(t, blog, post["blog"])
	assert.Equal(t, []any{post}, blog["posts"])
}

func TestInverseFixupSingleValuedUntracked(t *testing.T) {
	user := metadata.NewEntity("User")
	profile := metadata.NewEntity("Profile")
	userProfile := user.AddReference("profile", profile, "profileId")
	profileUser := profile.AddReference("user", user, "userId")
	metadata.Pair(userProfile, profileUser)
	require.NoError(t, user.Validate())

	tree := NewTree(user)
	tree.Child(userProfile)
	plan := Compile(tree, Options{})

	u := metadata.Record{"id": 1, "profileId": 5}
	p := metadata.Record{"id": 5}

	exec := NewExecutor(nil, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, u, []any{p}))

	assert.Equal(t, p, u["profile"])
	assert.Equal(t, u, p["user"])
}

func TestInverseFixupTracked(t *testing.T) {
	m := newModel(t)

	tree := NewTree(m.post)
	tree.Child(m.postBlog)
	plan := Compile(tree, Options{Tracked: true})

	post := metadata.Record{"id": 10, "blogId": 1}
	blog := metadata.Record{"id": 1}

	tracker := tracking.NewTracker()
	_, err := tracker.Track(m.post, post)
	require.NoError(t, err)

	exec := NewExecutor(tracker, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, post, []any{blog}))

	postEntry, ok := tracker.Entry(m.post, post)
	require.True(t, ok)
	snap, ok := postEntry.RelationSnapshot(m.postBlog)
	assert.True(t, ok)
	assert.Equal(t, blog, snap)

	blogEntry, ok := tracker.Entry(m.blog, blog)
	require.True(t, ok)
	assert.Equal(t, []any{post}, blogEntry.CollectionSnapshot(m.blogPosts))
	assert.Equal(t, []any{post}, blog["posts"])
}

func TestApplyNestedReferences(t *testing.T) {
	// Blog.owner.country with both slots populated wires the full chain
	m := newModel(t)

	tree := NewTree(m.blog)
	tree.Child(m.owner).Child(m.userCountry)
	plan := Compile(tree, Options{})

	blog := metadata.Record{"id": 1}
	user := metadata.Record{"id": 2}
	country := metadata.Record{"id": 3}

	exec := NewExecutor(nil, nil, nil)
	require.NoError(t, exec.Apply(context.Background(), plan, blog, []any{user, country}))

	assert.Equal(t, user, blog["owner"])
	assert.Equal(t, country, user["country"])
}

func TestTrackedUntrackedGraphEquivalence(t *testing.T) {
	m := newModel(t)

	build := func(tracked bool) (metadata.Record, error) {
		tree := NewTree(m.blog)
		tree.Child(m.owner).Child(m.userCountry)
		plan := Compile(tree, Options{Tracked: tracked})

		blog := metadata.Record{"id": 1}
		user := metadata.Record{"id": 2}
		country := metadata.Record{"id": 3}

		var tracker *tracking.Tracker
		if tracked {
			tracker = tracking.NewTracker()
			if _, err := tracker.Track(m.blog, blog); err != nil {
				return nil, err
			}
		}

		exec := NewExecutor(tracker, nil, nil)
		if err := exec.Apply(context.Background(), plan, blog, []any{user, country}); err != nil {
			return nil, err
		}
		return blog, nil
	}

	tracked, err := build(true)
	require.NoError(t, err)
	untracked, err := build(false)
	require.NoError(t, err)

	assert.Equal(t, untracked["owner"], tracked["owner"])
	trackedOwner := tracked["owner"].(metadata.Record)
	untrackedOwner := untracked["owner"].(metadata.Record)
	assert.Equal(t, untrackedOwner["country"], trackedOwner["country"])
}

func TestApplySlotErrors(t *testing.T) {
	m := newModel(t)

	tree := NewTree(m.blog)
	tree.Child(m.owner)
	plan := Compile(tree, Options{})

	exec := NewExecutor(nil, nil, nil)

	t.Run("out of range", func(t *testing.T) {
		err := exec.Apply(context.Background(), plan, metadata.Record{"id": 1}, nil)
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("wrong type", func(t *testing.T) {
		err := exec.Apply(context.Background(), plan, metadata.Record{"id": 1}, []any{42})
		assert.ErrorContains(t, err, "want record")
	})
}

func TestCollectionWithoutBuffer(t *testing.T) {
	m := newModel(t)

	tree := NewTree(m.blog)
	tree.Child(m.blogPosts)
	plan := Compile(tree, Options{})

	exec := NewExecutor(nil, &fakeSource{}, nil)
	err := exec.Apply(context.Background(), plan, metadata.Record{"id": 1}, nil)
	assert.ErrorContains(t, err, "no buffer configured")
}
