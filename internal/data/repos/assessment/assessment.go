package assessment

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type AssessmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Assessment) ([]*types.Assessment, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Assessment, error)
	ListByUser(dbc dbctx.Context, userID uint, limit, offset int) ([]*types.Assessment, error)
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{db: db, log: baseLog.With("repo", "AssessmentRepo")}
}

func (r *assessmentRepo) Create(dbc dbctx.Context, rows []*types.Assessment) ([]*types.Assessment, error) {
	if len(rows) == 0 {
		return []*types.Assessment{}, nil
	}
	if err := dbc.Resolve(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByID returns nil without error when the row does not exist.
func (r *assessmentRepo) GetByID(dbc dbctx.Context, id uint) (*types.Assessment, error) {
	if id == 0 {
		return nil, nil
	}
	var row types.Assessment
	err := dbc.Resolve(r.db).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *assessmentRepo) ListByUser(dbc dbctx.Context, userID uint, limit, offset int) ([]*types.Assessment, error) {
	var out []*types.Assessment
	if userID == 0 {
		return out, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if err := dbc.Resolve(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
