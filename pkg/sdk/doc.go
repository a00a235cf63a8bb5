// Package scopedex embeds the scopedex read/write sync layer in a Go program
// without the HTTP surface.
//
// The client talks to Postgres as the system of record and to Redis Query
// Engine as the search index. Reads go to the index first and fall back to
// Postgres; writes commit to Postgres and then re-index on a best-effort basis.
//
//	client, _ := scopedex.New(ctx,
//	    scopedex.WithRedis("localhost:6379", ""),
//	    scopedex.WithPostgres("postgres://localhost/app"),
//	)
//	defer client.Close()
//
//	props := client.Entities("properties")
//	page, _ := props.List(ctx, "42", url.Values{"city": {"Lisbon"}}, 1, 20)
//	doc, _ := props.Retrieve(ctx, "42", page.Items[0].ID)
//
// Errors are classified with errors.Is against the sentinels in this package.
package scopedex
