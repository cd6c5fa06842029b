package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type Repos struct {
	User       repos.UserRepo
	Assessment repos.AssessmentRepo
	JobRun     repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:       repos.NewUserRepo(db, log),
		Assessment: repos.NewAssessmentRepo(db, log),
		JobRun:     repos.NewJobRunRepo(db, log),
	}
}
