// internal/model/models.go
package model

// Repository is a flattened GitHub repository whose owner object has been
// replaced by the owner's id.
type Repository struct {
	ID              int64  `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	Visibility      string `json:"visibility" db:"visibility"`
	StargazersCount int    `json:"stargazers_count" db:"stargazers_count"`
	OwnerID         int64  `json:"owner_id" db:"owner_id"`
}

// Owner is the account that owns one or more repositories.
type Owner struct {
	ID         int64  `json:"id" db:"id"`
	Login      string `json:"login" db:"login"`
	GravatarID string `json:"gravatar_id" db:"gravatar_id"`
}

// ReportRow is one row of the repos/owners join.
type ReportRow struct {
	RepoID     int64  `json:"RepoID" db:"RepoID"`
	RepoName   string `json:"RepoName" db:"RepoName"`
	Status     string `json:"Status" db:"Status"`
	StarsCount int    `json:"starsCount" db:"starsCount"`
	OwnerID    int64  `json:"ownerId" db:"ownerId"`
	OwnerName  string `json:"ownerName" db:"ownerName"`
	OwnerEmail string `json:"ownerEmail" db:"ownerEmail"`
}

// Relation is a named table of rows that can be bulk loaded.
type Relation interface {
	TableName() string
	Columns() []string
	Rows() [][]any
}

// Table names and cache keys shared by the pipeline stages.
const (
	ReposTable  = "repos"
	OwnersTable = "owners"
	ResultKey   = "result"
)

// Repositories is the repos relation.
type Repositories []Repository

func (Repositories) TableName() string { return ReposTable }

func (Repositories) Columns() []string {
	return []string{"id", "name", "visibility", "stargazers_count", "owner_id"}
}

func (rs Repositories) Rows() [][]any {
	rows := make([][]any, len(rs))
	for i, r := range rs {
		rows[i] = []any{r.ID, r.Name, r.Visibility, r.StargazersCount, r.OwnerID}
	}
	return rows
}

// Owners is the owners relation.
type Owners []Owner

func (Owners) TableName() string { return OwnersTable }

func (Owners) Columns() []string {
	return []string{"id", "login", "gravatar_id"}
}

func (owners Owners) Rows() [][]any {
	rows := make([][]any, len(owners))
	for i, o := range owners {
		rows[i] = []any{o.ID, o.Login, o.GravatarID}
	}
	return rows
}

// ReportColumns is the header of the joined report, in output order.
var ReportColumns = []string{"RepoID", "RepoName", "Status", "starsCount", "ownerId", "ownerName", "ownerEmail"}
