package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrateValidatesInput(t *testing.T) {
	require.Error(t, Migrate("", DirectionUp, 0))
	require.Error(t, Migrate("postgres://localhost/db", "sideways", 0))
}

func TestBlogNotifyTriggerPresent(t *testing.T) {
	raw, err := migrationFS.ReadFile("migrations/000003_blog_posts_notify.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pg_notify('blog_posts_changes'")
}
