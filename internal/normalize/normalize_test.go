// internal/normalize/normalize_test.go
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

func decode(t *testing.T, raw string) []*github.Repository {
	t.Helper()
	var repos []*github.Repository
	require.NoError(t, json.Unmarshal([]byte(raw), &repos))
	return repos
}

func newNormalizer() *Normalizer {
	return New(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestNormalize_SingleRepository(t *testing.T) {
	raw := decode(t, `[{"id":1,"name":"r1","visibility":"public","stargazers_count":3,"owner":{"id":10,"login":"alice","gravatar_id":""}}]`)

	repos, owners, err := newNormalizer().Normalize(raw)

	require.NoError(t, err)
	assert.Equal(t, model.Repositories{{ID: 1, Name: "r1", Visibility: "public", StargazersCount: 3, OwnerID: 10}}, repos)
	assert.Equal(t, model.Owners{{ID: 10, Login: "alice", GravatarID: ""}}, owners)
}

func TestNormalize_Deduplicates(t *testing.T) {
	raw := decode(t, `[
		{"id":1,"name":"first","owner":{"id":10,"login":"alice"}},
		{"id":2,"name":"other","owner":{"id":10,"login":"alice-renamed"}},
		{"id":1,"name":"dup","owner":{"id":11,"login":"bob"}}
	]`)

	repos, owners, err := newNormalizer().Normalize(raw)

	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "first", repos[0].Name, "first occurrence wins")
	assert.Equal(t, int64(2), repos[1].ID)
	assert.Equal(t, model.Owners{{ID: 10, Login: "alice"}, {ID: 11, Login: "bob"}}, owners)
}

func TestNormalize_SchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		index int
		field string
	}{
		{"missing owner", `[{"id":1,"name":"r"}]`, 0, "owner"},
		{"missing id", `[{"id":1,"owner":{"id":1}},{"name":"r","owner":{"id":1}}]`, 1, "id"},
		{"missing owner id", `[{"id":1,"owner":{"login":"x"}}]`, 0, "owner.id"},
		{"null element", `[null]`, 0, "id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := newNormalizer().Normalize(decode(t, tc.raw))

			var schemaErr *apperrors.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tc.index, schemaErr.Index)
			assert.Equal(t, tc.field, schemaErr.Field)
		})
	}
}

func TestNormalize_Empty(t *testing.T) {
	repos, owners, err := newNormalizer().Normalize(nil)

	require.NoError(t, err)
	assert.Empty(t, repos)
	assert.Empty(t, owners)
}

// Every output repository id is unique and every owner_id resolves to an owner.
func TestNormalize_ReferentialIntegrity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		var items []string
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			items = append(items, fmt.Sprintf(`{"id":%d,"name":"r","owner":{"id":%d,"login":"o"}}`, rng.Intn(15), rng.Intn(5)))
		}
		raw := decode(t, "["+strings.Join(items, ",")+"]")

		repos, owners, err := newNormalizer().Normalize(raw)
		require.NoError(t, err)

		ownerIDs := map[int64]bool{}
		for _, o := range owners {
			assert.False(t, ownerIDs[o.ID], "duplicate owner %d", o.ID)
			ownerIDs[o.ID] = true
		}
		repoIDs := map[int64]bool{}
		for _, r := range repos {
			assert.False(t, repoIDs[r.ID], "duplicate repo %d", r.ID)
			repoIDs[r.ID] = true
			assert.True(t, ownerIDs[r.OwnerID], "dangling owner_id %d", r.OwnerID)
		}
	}
}
