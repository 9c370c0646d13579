package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/platform/neo4jdb"
)

// CitedHopDecay scales the confidence of authorities reached through a CITES edge.
const CitedHopDecay = 0.8

// AuthorityHit is an authority reached from a skill in the citation graph.
type AuthorityHit struct {
	ID         string
	Confidence float64
	Hops       int
}

// AuthorityGraph finds verified authorities around a skill.
type AuthorityGraph interface {
	AuthoritiesForSkill(ctx context.Context, skillID string, unitID string, limit int) ([]AuthorityHit, error)
}

type neo4jAuthorityGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

// NewAuthorityGraph returns nil when client is nil so callers can skip the graph.
func NewAuthorityGraph(client *neo4jdb.Client, log *logger.Logger) AuthorityGraph {
	if client == nil || client.Driver == nil {
		return nil
	}
	return &neo4jAuthorityGraph{client: client, log: log.With("graph", "AuthorityGraph")}
}

func (g *neo4jAuthorityGraph) AuthoritiesForSkill(ctx context.Context, skillID string, unitID string, limit int) ([]AuthorityHit, error) {
	if limit <= 0 {
		limit = 10
	}
	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Authority {verified: true})-[:REFERENCES]->(t)
WHERE (t:Skill AND t.id = $skill_id) OR (t:Unit AND t.id = $unit_id)
WITH collect(DISTINCT a) AS direct
UNWIND direct AS d
OPTIONAL MATCH (d)-[:CITES]->(c:Authority {verified: true})
WITH direct, collect(DISTINCT c) AS cited
UNWIND direct + cited AS a
WITH DISTINCT a, CASE WHEN a IN direct THEN 0 ELSE 1 END AS hops
RETURN a.id AS id, coalesce(a.confidence, 0.5) AS confidence, hops
ORDER BY hops ASC, confidence DESC, id ASC
LIMIT $limit
`, map[string]any{"skill_id": skillID, "unit_id": unitID, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		var hits []AuthorityHit
		for res.Next(ctx) {
			rec := res.Record()
			id, _, err := neo4j.GetRecordValue[string](rec, "id")
			if err != nil {
				return nil, err
			}
			conf, _, err := neo4j.GetRecordValue[float64](rec, "confidence")
			if err != nil {
				return nil, err
			}
			hops, _, err := neo4j.GetRecordValue[int64](rec, "hops")
			if err != nil {
				return nil, err
			}
			if hops > 0 {
				conf *= CitedHopDecay
			}
			hits = append(hits, AuthorityHit{ID: id, Confidence: conf, Hops: int(hops)})
		}
		return hits, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j authorities for skill: %w", err)
	}
	hits, _ := out.([]AuthorityHit)
	return hits, nil
}

// CitationEdge says one authority cites another.
type CitationEdge struct {
	FromID string `yaml:"from" json:"from"`
	ToID   string `yaml:"to" json:"to"`
}

// SyncAuthorities mirrors authorities, their skill/unit links and citation edges into Neo4j.
func SyncAuthorities(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, authorities []*types.Authority, links []*types.AuthorityLink, cites []CitationEdge) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(authorities))
	for _, a := range authorities {
		if a == nil || a.ID == "" {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":         a.ID,
			"citation":   a.Citation,
			"kind":       a.Kind,
			"verified":   a.Verified,
			"confidence": a.Confidence,
		})
	}
	skillLinks := make([]map[string]any, 0, len(links))
	unitLinks := make([]map[string]any, 0, len(links))
	for _, l := range links {
		if l == nil {
			continue
		}
		row := map[string]any{"authority_id": l.AuthorityID, "target_id": l.TargetID}
		switch l.TargetType {
		case "skill":
			skillLinks = append(skillLinks, row)
		case "unit":
			unitLinks = append(unitLinks, row)
		}
	}
	citeRows := make([]map[string]any, 0, len(cites))
	for _, c := range cites {
		citeRows = append(citeRows, map[string]any{"from": c.FromID, "to": c.ToID})
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT authority_id_unique IF NOT EXISTS FOR (a:Authority) REQUIRE a.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stmts := []struct {
			cypher string
			rows   []map[string]any
		}{
			{`
UNWIND $rows AS row
MERGE (a:Authority {id: row.id})
SET a.citation = row.citation, a.kind = row.kind, a.verified = row.verified,
    a.confidence = row.confidence, a.synced_at = $synced_at
`, nodes},
			{`
UNWIND $rows AS row
MATCH (a:Authority {id: row.authority_id})
MERGE (s:Skill {id: row.target_id})
MERGE (a)-[:REFERENCES]->(s)
`, skillLinks},
			{`
UNWIND $rows AS row
MATCH (a:Authority {id: row.authority_id})
MERGE (u:Unit {id: row.target_id})
MERGE (a)-[:REFERENCES]->(u)
`, unitLinks},
			{`
UNWIND $rows AS row
MATCH (a:Authority {id: row.from})
MATCH (b:Authority {id: row.to})
MERGE (a)-[:CITES]->(b)
`, citeRows},
		}
		for _, st := range stmts {
			if len(st.rows) == 0 {
				continue
			}
			res, err := tx.Run(ctx, st.cypher, map[string]any{"rows": st.rows, "synced_at": now})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
