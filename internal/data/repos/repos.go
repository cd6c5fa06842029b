package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos/assessment"
	"github.com/yungbote/bloomquiz-backend/internal/data/repos/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/data/repos/user"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type UserRepo = user.UserRepo
type AssessmentRepo = assessment.AssessmentRepo
type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return user.NewUserRepo(db, baseLog)
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return assessment.NewAssessmentRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
