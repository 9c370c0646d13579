package app

import (
	"context"
	"fmt"

	"github.com/yungbote/studyforge-backend/internal/platform/gcp"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/platform/neo4jdb"
	"github.com/yungbote/studyforge-backend/internal/platform/openai"
	"github.com/yungbote/studyforge-backend/internal/realtime/bus"
)

// Clients are the external backends. Every one except Bus is optional and nil when unconfigured.
type Clients struct {
	Bus    bus.Bus
	Neo4j  *neo4jdb.Client
	LLM    openai.Client
	Bucket *gcp.Bucket
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	b, err := bus.New(log, cfg.Redis)
	if err != nil {
		return out, fmt.Errorf("init realtime bus: %w", err)
	}
	out.Bus = b

	neo, err := neo4jdb.New(cfg.Neo4j, log)
	if err != nil {
		out.Close(ctx, log)
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	out.Neo4j = neo

	if cfg.OpenAI.APIKey != "" {
		llm, err := openai.NewClient(log, cfg.OpenAI)
		if err != nil {
			out.Close(ctx, log)
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		out.LLM = llm
	}

	bucket, err := gcp.NewBucket(ctx, log, cfg.Bucket)
	if err != nil {
		out.Close(ctx, log)
		return Clients{}, fmt.Errorf("init report bucket: %w", err)
	}
	out.Bucket = bucket

	return out, nil
}

func (c Clients) Close(ctx context.Context, log *logger.Logger) {
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			log.Warn("realtime bus close failed", "error", err)
		}
	}
	if c.Neo4j != nil {
		if err := c.Neo4j.Close(ctx); err != nil {
			log.Warn("neo4j close failed", "error", err)
		}
	}
	if c.Bucket != nil {
		if err := c.Bucket.Close(); err != nil {
			log.Warn("bucket close failed", "error", err)
		}
	}
}
