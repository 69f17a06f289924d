package database

import (
	"testing"
	"time"

	"tgfeed/internal/database/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStoredPost(t *testing.T) {
	t.Run("FillsFromRawPayload", func(t *testing.T) {
		p := models.RawPost{
			MessageID: 7,
			PostedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("MSK", 3*3600)),
			Raw: []byte(`{"message_id":7,"date":1700000000,"chat":{"id":-1,"type":"channel"},
				"media_group_id":"g9","photo":[{"file_id":"p1","file_unique_id":"u1","width":100,"height":100}]}`),
		}
		normalizeStoredPost(&p)
		assert.Equal(t, "g9", p.GroupID)
		require.Len(t, p.MediaRefs, 1)
		assert.Equal(t, "p1", p.MediaRefs[0].FileID)
		assert.Equal(t, time.UTC, p.PostedAt.Location())
	})

	t.Run("KeepsStoredFields", func(t *testing.T) {
		p := models.RawPost{
			GroupID:   "stored",
			MediaRefs: []models.MediaRef{{FileID: "kept"}},
			Raw:       []byte(`{"media_group_id":"other"}`),
		}
		normalizeStoredPost(&p)
		assert.Equal(t, "stored", p.GroupID)
		assert.Equal(t, "kept", p.MediaRefs[0].FileID)
	})
}

func TestWithSchema(t *testing.T) {
	st := &PostgresStore{schema: "public"}
	require.NoError(t, WithSchema("feed_it")(st))
	assert.Equal(t, "feed_it", st.schema)

	assert.Error(t, WithSchema("bad-schema")(st))
	assert.Error(t, WithSchema("")(st))
	assert.Equal(t, `"feed_it"."telegram_posts"`, st.table(postsCollectionName))
}

func TestNewPostgresStoreNilPool(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}
