package generate_assessment

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	jobrt "github.com/yungbote/bloomquiz-backend/internal/jobs/runtime"
	"github.com/yungbote/bloomquiz-backend/internal/modules/generation"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
)

type source struct {
	Source string `json:"source"`
	Page   string `json:"page"`
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	query := jc.PayloadString("query")
	if query == "" {
		jc.Fail("validate", fmt.Errorf("missing query"))
		return nil
	}
	collection := jc.PayloadString("collection_name")
	quota := generation.DefaultQuota()
	if spec := jc.PayloadString("blooms_requirements"); spec != "" {
		q, err := generation.ParseQuota(spec)
		if err != nil {
			jc.Fail("validate", err)
			return nil
		}
		quota = q
	}
	topK, _ := jc.PayloadInt("top_k")

	out, err := p.generate.Generate(jc.Ctx, generation.GenerateInput{
		Query:          query,
		CollectionName: collection,
		Quota:          quota,
		TopK:           topK,
		Report:         jc.Progress,
	})
	if errors.Is(err, generation.ErrNoContextFound) {
		p.log.Info("no context for query; nothing generated", "collection", collection)
		jc.Succeed("no_context", map[string]any{
			"no_context":          true,
			"mcqs":                nil,
			"blooms_requirements": quota.String(),
		})
		return nil
	}
	if err != nil {
		var se *generation.GenerationSchemaError
		if errors.As(err, &se) {
			jc.Fail("validate", err)
			return nil
		}
		jc.Fail("generate", err)
		return nil
	}

	sources := make([]source, 0, len(out.Sources))
	for _, s := range out.Sources {
		sources = append(sources, source{Source: s.Source, Page: s.Page})
	}
	result := map[string]any{
		"mcqs":                out.Set.MCQs,
		"blooms_requirements": out.Quota.String(),
		"bloom_factors":       out.Quota.Counts(),
		"collection_name":     collection,
		"sources":             sources,
	}

	if owner := jc.Job.OwnerUserID; owner != nil && p.assessments != nil {
		jc.Progress("persist", 95, "Saving assessment")
		row, err := p.persist(jc, *owner, query, out)
		if err != nil {
			jc.Fail("persist", err)
			return nil
		}
		result["assessment_id"] = row.ID
	}

	jc.Succeed("done", result)
	return nil
}

func (p *Pipeline) persist(jc *jobrt.Context, owner uint, query string, out generation.GenerateOutput) (*types.Assessment, error) {
	factors, err := json.Marshal(out.Quota.Counts())
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(out.Set)
	if err != nil {
		return nil, err
	}
	row := &types.Assessment{
		UserID:       owner,
		ChapterName:  query,
		BloomFactors: datatypes.JSON(factors),
		ContentJSON:  datatypes.JSON(content),
	}
	if _, err := p.assessments.Create(dbctx.Context{Ctx: jc.Ctx}, []*types.Assessment{row}); err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}
	return row, nil
}
