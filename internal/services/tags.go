package services

import (
	"context"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

type TagInput struct {
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

func (s *LedgerService) ListTags(ctx context.Context, userID string, q ListQuery) ([]core.Tag, error) {
	return s.queries().ListTags(ctx, storage.ListTagsParams{
		UserID:   userID,
		Query:    q.Query,
		Archived: q.Archived,
	})
}

func (s *LedgerService) GetTag(ctx context.Context, userID string, id int64) (core.Tag, error) {
	return s.queries().GetTag(ctx, userID, id)
}

func (s *LedgerService) CreateTag(ctx context.Context, userID string, in TagInput) (core.Tag, error) {
	t := core.Tag{UserID: userID, Name: strings.TrimSpace(in.Name), Archived: in.Archived}
	if err := t.Validate(); err != nil {
		return core.Tag{}, err
	}
	created, err := s.queries().CreateTag(ctx, t)
	if err != nil {
		return core.Tag{}, err
	}
	s.logger.InfoContext(ctx, "Tag created", log.FieldUserID, userID, log.FieldTagID, created.ID)
	return created, nil
}

func (s *LedgerService) UpdateTag(ctx context.Context, userID string, id int64, in TagInput) (core.Tag, error) {
	t := core.Tag{ID: id, UserID: userID, Name: strings.TrimSpace(in.Name), Archived: in.Archived}
	if err := t.Validate(); err != nil {
		return core.Tag{}, err
	}
	return s.queries().UpdateTag(ctx, t)
}

func (s *LedgerService) DeleteTag(ctx context.Context, userID string, id int64) error {
	return s.queries().DeleteTag(ctx, userID, id)
}

// resolveTags loads the tags for a payload. Any id the user does not own
// fails the whole payload.
func (s *LedgerService) resolveTags(ctx context.Context, userID string, ids []int64) ([]core.Tag, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	tags, err := s.queries().GetTags(ctx, userID, unique)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(unique) {
		return nil, core.NewFieldError("tags", core.ErrTagNotOwned)
	}
	return tags, nil
}
