package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonathan/content-repurposer/internal/store"
)

// setupTestStore connects to a local MongoDB and uses a throwaway database.
// Skipped if the connection fails.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URL")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Connect(ctx, uri, "repurposer_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to MongoDB: %v", err)
	}
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.database.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestIntegration_Users(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := &store.User{Name: "Ada", Email: " Ada@Example.com "}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, "ada@example.com", u.Email)

	assert.ErrorIs(t, s.CreateUser(ctx, &store.User{Name: "Dup", Email: "ada@example.com"}), store.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	acct := store.OAuthAccount{Provider: store.ProviderGoogle, Subject: "g-1"}
	require.NoError(t, s.LinkOAuthAccount(ctx, u.ID, acct))
	assert.ErrorIs(t, s.LinkOAuthAccount(ctx, u.ID, acct), store.ErrDuplicate)
	assert.ErrorIs(t, s.LinkOAuthAccount(ctx, uuid.New(), store.OAuthAccount{Provider: "google", Subject: "g-2"}), store.ErrNotFound)

	other := &store.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, s.CreateUser(ctx, other))
	assert.ErrorIs(t, s.LinkOAuthAccount(ctx, other.ID, acct), store.ErrDuplicate)

	linked, err := s.GetUserByOAuth(ctx, store.ProviderGoogle, "g-1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, u.ID, linked.ID)

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "hash"))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.PasswordSet)

	missing, err := s.GetUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIntegration_CascadeAndPaging(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	src := &store.ContentSource{UserID: userID, Kind: store.SourceKindWeb, URL: "https://example.com", Content: "body"}
	require.NoError(t, s.CreateSource(ctx, src))

	ideas := []store.Idea{{UserID: userID, SourceID: src.ID, Title: "a"}, {UserID: userID, SourceID: src.ID, Title: "b"}}
	require.NoError(t, s.CreateIdeas(ctx, ideas))

	ideaID := ideas[0].ID
	posts := []store.Post{
		{UserID: userID, SourceID: src.ID, Description: "direct", Platform: "x"},
		{UserID: userID, SourceID: src.ID, IdeaID: &ideaID, Description: "from idea", Platform: "linkedin"},
	}
	require.NoError(t, s.CreatePosts(ctx, posts))
	sched := &store.Schedule{UserID: userID, PostID: posts[1].ID, Platform: "linkedin", PublishAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateSchedule(ctx, sched))

	page, total, err := s.ListIdeas(ctx, userID, src.ID, store.PageRequest{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, page, 1)

	require.NoError(t, s.DeleteIdea(ctx, userID, ideaID))
	gone, err := s.GetSchedule(ctx, userID, sched.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := s.GetPost(ctx, userID, posts[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	require.NoError(t, s.DeleteSource(ctx, userID, src.ID))
	_, total, err = s.ListPosts(ctx, userID, store.PostFilter{}, store.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.ErrorIs(t, s.DeleteSource(ctx, userID, src.ID), store.ErrNotFound)
}

func TestIntegration_DeleteSourceIsRetryable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	src := &store.ContentSource{UserID: owner, Kind: store.SourceKindWeb, URL: "https://example.com/a", Content: "body"}
	require.NoError(t, s.CreateSource(ctx, src))
	ideas := []store.Idea{{UserID: owner, SourceID: src.ID, Title: "a"}}
	require.NoError(t, s.CreateIdeas(ctx, ideas))
	ideaID := ideas[0].ID
	posts := []store.Post{{UserID: owner, SourceID: src.ID, IdeaID: &ideaID, Description: "draft", Platform: "x"}}
	require.NoError(t, s.CreatePosts(ctx, posts))
	sched := &store.Schedule{UserID: owner, PostID: posts[0].ID, Platform: "x", PublishAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateSchedule(ctx, sched))

	// Another user cannot trigger the cascade.
	assert.ErrorIs(t, s.DeleteSource(ctx, stranger, src.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteIdea(ctx, stranger, ideaID), store.ErrNotFound)
	assert.ErrorIs(t, s.DeletePost(ctx, stranger, posts[0].ID), store.ErrNotFound)
	still, err := s.GetSchedule(ctx, owner, sched.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)

	// A cascade that stopped after its first step leaves the source and its
	// ideas reachable, so repeating the delete finishes the job.
	require.NoError(t, s.deletePostsWhere(ctx, bson.M{"user_id": owner.String(), "source_id": src.ID.String()}))
	left, err := s.GetSource(ctx, owner, src.ID)
	require.NoError(t, err)
	assert.NotNil(t, left)
	require.NoError(t, s.DeleteSource(ctx, owner, src.ID))

	gone, err := s.GetSource(ctx, owner, src.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	_, total, err := s.ListIdeas(ctx, owner, src.ID, store.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = s.ListSchedules(ctx, owner, store.ScheduleFilter{}, store.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total, "schedule of the removed post is not orphaned")
}
