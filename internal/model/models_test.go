// internal/model/models_test.go
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelations(t *testing.T) {
	repos := Repositories{{ID: 1, Name: "r1", Visibility: "public", StargazersCount: 3, OwnerID: 10}}
	owners := Owners{{ID: 10, Login: "alice"}}

	assert.Equal(t, "repos", repos.TableName())
	assert.Equal(t, [][]any{{int64(1), "r1", "public", 3, int64(10)}}, repos.Rows())
	assert.Len(t, repos.Columns(), len(repos.Rows()[0]))

	assert.Equal(t, "owners", owners.TableName())
	assert.Equal(t, [][]any{{int64(10), "alice", ""}}, owners.Rows())
	assert.Len(t, owners.Columns(), len(owners.Rows()[0]))
}

func TestRelations_Empty(t *testing.T) {
	assert.Empty(t, Repositories(nil).Rows())
	assert.Empty(t, Owners{}.Rows())
}
