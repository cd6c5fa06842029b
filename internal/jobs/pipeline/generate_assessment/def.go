package generate_assessment

import (
	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	"github.com/yungbote/bloomquiz-backend/internal/modules/generation"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type Pipeline struct {
	log         *logger.Logger
	assessments repos.AssessmentRepo
	generate    generation.Usecases
}

func New(baseLog *logger.Logger, assessments repos.AssessmentRepo, generate generation.Usecases) *Pipeline {
	log := baseLog.With("job", services.JobTypeGenerateAssessment)
	return &Pipeline{
		log:         log,
		assessments: assessments,
		generate:    generate.WithLog(log),
	}
}

func (p *Pipeline) Type() string { return services.JobTypeGenerateAssessment }
