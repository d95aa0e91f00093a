package query

import (
	"testing"

	"github.com/dubeme/eagerload/include"
	"github.com/dubeme/eagerload/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel struct {
	blog, user, country, post, comment *metadata.EntityType

	owner, userCountry, postBlog *metadata.Relationship
	blogPosts, postComments      *metadata.Relationship
}

func newTestModel(t *testing.T) *testModel {
	t.Helper()

	m := &testModel{
		blog:    metadata.NewEntity("Blog"),
		user:    metadata.NewEntity("User"),
		country: metadata.NewEntity("Country"),
		post:    metadata.NewEntity("Post"),
		comment: metadata.NewEntity("Comment"),
	}

	m.owner = m.blog.AddReference("owner", m.user, "ownerId")
	m.userCountry = m.user.AddReference("country", m.country, "countryId")
	m.blogPosts = m.blog.AddCollection("posts", m.post, "blogId")
	m.postBlog = m.post.AddReference("blog", m.blog, "blogId")
	m.postComments = m.post.AddCollection("comments", m.comment, "postId")
	metadata.Pair(m.blogPosts, m.postBlog)

	for _, et := range []*metadata.EntityType{m.blog, m.user, m.country, m.post, m.comment} {
		require.NoError(t, et.Validate())
	}
	return m
}

func TestParseIncludesSinglePath(t *testing.T) {
	m := newTestModel(t)

	tree, err := ParseIncludes(m.blog, "posts")
	require.NoError(t, err)

	require.Len(t, tree.Children(), 1)
	assert.Equal(t, m.blogPosts, tree.Children()[0].Relationship)
}

func TestParseIncludesNestedPath(t *testing.T) {
	m := newTestModel(t)

	tree, err := ParseIncludes(m.blog, "owner.country")
	require.NoError(t, err)

	require.Len(t, tree.Children(), 1)
	owner := tree.Children()[0]
	assert.Equal(t, m.owner, owner.Relationship)
	require.Len(t, owner.Children(), 1)
	assert.Equal(t, m.userCountry, owner.Children()[0].Relationship)
}

func TestParseIncludesMergesSharedPrefix(t *testing.T) {
	m := newTestModel(t)

	tree, err := ParseIncludes(m.blog, "posts.comments", "posts.blog", "posts")
	require.NoError(t, err)

	require.Len(t, tree.Children(), 1)
	posts := tree.Children()[0]
	require.Len(t, posts.Children(), 2)
	assert.Equal(t, m.postComments, posts.Children()[0].Relationship)
	assert.Equal(t, m.postBlog, posts.Children()[1].Relationship)
}

func TestParseIncludesUnknownRelation(t *testing.T) {
	m := newTestModel(t)

	_, err := ParseIncludes(m.blog, "authors")
	require.Error(t, err)
	assert.ErrorContains(t, err, `include path "authors"`)
	assert.ErrorContains(t, err, "relation authors not found on model Blog")

	_, err = ParseIncludes(m.blog, "posts.likes")
	assert.ErrorContains(t, err, "relation likes not found on model Post")
}

func TestParseIncludesEmptySegment(t *testing.T) {
	m := newTestModel(t)

	for _, path := range []string{"", "posts.", ".posts", "posts..comments"} {
		_, err := ParseIncludes(m.blog, path)
		assert.ErrorContains(t, err, "invalid include path", "path %q", path)
	}
}

func TestParseIncludesOrderFixesNumbering(t *testing.T) {
	// Path registration order is the traversal order the compiler sees, so
	// it decides slot assignment
	m := newTestModel(t)

	tree, err := ParseIncludes(m.blog, "owner.country", "posts")
	require.NoError(t, err)

	plan := include.Compile(tree, include.Options{})
	assert.Equal(t, 2, plan.Slots)
	assert.Equal(t, 1, plan.Collections)

	owner, ok := plan.Ops[0].(*include.ReferenceOp)
	require.True(t, ok)
	assert.Equal(t, 0, owner.Slot)

	posts, ok := plan.Ops[1].(*include.CollectionOp)
	require.True(t, ok)
	assert.Equal(t, 0, posts.ID)
}
