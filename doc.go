// Package agentvec provides an embeddable, file-based vector store for Go
// agent platforms.
//
// agentvec is a 100% pure Go library built on SQLite using
// modernc.org/sqlite (no CGO required). A tenant's data lives in a
// partition directory holding named stores, one SQLite file per store.
// Each record carries text content, JSON-like metadata, an embedding
// vector and optional session scoping and expiry.
//
// # Key Features
//
//   - Named per-tenant stores, created lazily on first write.
//   - Cosine similarity search over embeddings, brute force and exact.
//   - Versioned, reversible, transactional schema migrations per store.
//   - Pluggable text embedders: bring any model via the Embedder interface.
//   - Optional payload codecs: zstd, lz4 and authenticated encryption.
//   - Session scoping and TTL expiry with explicit sweeps.
//
// # Quick Start
//
//	db, err := agentvec.Open(agentvec.Config{
//		DataDir:   "data",
//		Partition: "tenant-1",
//	}, agentvec.WithEmbedder(myEmbedder))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	ctx := context.Background()
//	err = db.SaveRecord(ctx, "notes", &core.Record{Content: "hello world"})
//
//	res, err := db.ListRecords(ctx, "notes", agentvec.ListRecordsOptions{
//		EmbeddingSearch: "greeting",
//		TopK:            5,
//	})
//
// The main client surface lives in pkg/agentvec. The storage engine is in
// pkg/core, shard lifecycle in pkg/registry, schema migrations in
// pkg/migrate and payload codecs in pkg/codec.
package agentvec
