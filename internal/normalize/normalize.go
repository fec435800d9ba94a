// internal/normalize/normalize.go
package normalize

import (
	"log/slog"

	"github.com/google/go-github/v62/github"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

// Normalizer flattens GitHub repositories into the repos and owners relations.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize splits each repository's owner into its own relation and replaces
// it with an owner id. Both relations keep only the first record per id.
func (n *Normalizer) Normalize(raw []*github.Repository) (model.Repositories, model.Owners, error) {
	repos := make(model.Repositories, 0, len(raw))
	owners := make(model.Owners, 0, len(raw))
	seenRepos := make(map[int64]struct{}, len(raw))
	seenOwners := make(map[int64]struct{}, len(raw))

	for i, r := range raw {
		if err := validate(i, r); err != nil {
			n.logger.Error("Key not found in JSON data", "index", i, "error", err)
			return nil, nil, err
		}

		owner := r.GetOwner()
		if _, ok := seenOwners[owner.GetID()]; !ok {
			seenOwners[owner.GetID()] = struct{}{}
			owners = append(owners, model.Owner{
				ID:         owner.GetID(),
				Login:      owner.GetLogin(),
				GravatarID: owner.GetGravatarID(),
			})
		}

		if _, ok := seenRepos[r.GetID()]; ok {
			continue
		}
		seenRepos[r.GetID()] = struct{}{}
		repos = append(repos, model.Repository{
			ID:              r.GetID(),
			Name:            r.GetName(),
			Visibility:      r.GetVisibility(),
			StargazersCount: r.GetStargazersCount(),
			OwnerID:         owner.GetID(),
		})
	}

	n.logger.Info("Data normalized, deduplicated successfully",
		"input", len(raw),
		"repos", len(repos),
		"owners", len(owners),
		"duplicate_repos", len(raw)-len(repos),
	)
	return repos, owners, nil
}

func validate(i int, r *github.Repository) error {
	switch {
	case r == nil || r.ID == nil:
		return &apperrors.SchemaError{Index: i, Field: "id"}
	case r.Owner == nil:
		return &apperrors.SchemaError{Index: i, Field: "owner"}
	case r.Owner.ID == nil:
		return &apperrors.SchemaError{Index: i, Field: "owner.id"}
	}
	return nil
}
