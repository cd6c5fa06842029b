package services

import (
	"context"
	"fmt"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type AssessmentService interface {
	ListForUser(ctx context.Context, userID uint, limit, offset int) ([]*types.Assessment, error)
	// GetForUser hides other users' rows behind ErrNotFound.
	GetForUser(ctx context.Context, userID uint, id uint) (*types.Assessment, error)
}

type assessmentService struct {
	log  *logger.Logger
	repo repos.AssessmentRepo
}

func NewAssessmentService(baseLog *logger.Logger, repo repos.AssessmentRepo) AssessmentService {
	return &assessmentService{log: baseLog.With("service", "AssessmentService"), repo: repo}
}

func (s *assessmentService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]*types.Assessment, error) {
	rows, err := s.repo.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return rows, nil
}

func (s *assessmentService) GetForUser(ctx context.Context, userID uint, id uint) (*types.Assessment, error) {
	row, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if row == nil || row.UserID != userID {
		return nil, ErrNotFound
	}
	return row, nil
}
