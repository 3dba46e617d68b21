// Package vecmatch embeds the candidate/job matching engine in a Go program.
//
// The client owns a vector index (in-process, Valkey, Redis or PostgreSQL
// with pgvector) and an Encoder supplied by the caller. Candidates and jobs
// are encoded on upsert; match queries rank the counterpart class by a
// weighted blend of semantic similarity, skill coverage and experience fit.
//
//	client, _ := vecmatch.New(ctx,
//	    vecmatch.WithMemory(),
//	    vecmatch.WithEncoder(myEncoder),
//	    vecmatch.WithDimensions(1536),
//	)
//	defer client.Close()
//
//	_ = client.UpsertJob(ctx, vecmatch.Job{ID: "j1", Description: "Go backend engineer", RequiredSkills: []string{"go", "sql"}})
//	_ = client.UpsertCandidate(ctx, vecmatch.Candidate{ID: "c1", ProfileText: "Backend developer, 6 years of Go"})
//	resp, _ := client.FindMatches(ctx, "j1", vecmatch.MatchQuery{TopK: 10})
package vecmatch
