package ingest_document

import (
	"errors"
	"fmt"

	jobrt "github.com/yungbote/bloomquiz-backend/internal/jobs/runtime"
	"github.com/yungbote/bloomquiz-backend/internal/modules/ingestion"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

const stageFetch = "fetch"

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	collection := jc.PayloadString("collection_name")
	if err := vectorstore.ValidateCollection(collection); err != nil {
		jc.Fail("validate", err)
		return nil
	}

	sources := jc.PayloadStrings("sources")
	if ref := jc.PayloadString("upload_ref"); ref != "" {
		if p.store == nil {
			jc.Fail(stageFetch, fmt.Errorf("upload_ref given but no object store is configured"))
			return nil
		}
		jc.Progress(stageFetch, 1, "Fetching upload")
		local, cleanup, err := p.store.Fetch(jc.Ctx, ref)
		if err != nil {
			jc.Fail(stageFetch, fmt.Errorf("fetch upload %s: %w", ref, err))
			return nil
		}
		defer cleanup()
		sources = append([]string{local}, sources...)
	}
	if len(sources) == 0 {
		jc.Fail("validate", fmt.Errorf("missing sources"))
		return nil
	}

	res, err := p.ingest.Ingest(jc.Ctx, ingestion.IngestInput{
		Sources:        sources,
		CollectionName: collection,
	}, jc.Progress)
	if err != nil {
		stage := "ingest"
		if errors.Is(err, ingestion.ErrNoInput) {
			stage = "resolve"
		}
		jc.Fail(stage, err)
		return nil
	}

	// uploads are addressed by their original file name, not the staging path
	if name := jc.PayloadString("filename"); name != "" && jc.PayloadString("upload_ref") != "" {
		res.Source = name
	}
	jc.Succeed("done", res)
	return nil
}
