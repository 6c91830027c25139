package sqlagent

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	logx "github.com/eurocup-agent/server/pkg/logger"
)

const defaultSchemaTTL = 15 * time.Minute

// sampleRowsPerTable is how many example rows get appended to each table's
// documentation, mirroring what the model sees about real data shapes.
const sampleRowsPerTable = 2

var tournamentTables = []string{
	"teams", "players", "players_stats", "groups",
	"stadiums", "competition_stages", "matches", "group_standings",
}

// tableDocs is the curated documentation handed to the model. The engine
// never composes SQL itself; this text is the entire schema contract.
const tableDocs = `Table teams: teams of the competition.
- team_id (INT, primary key)
- country (TEXT): the full name of the team/country, preferred for display over team_id.
- coach (TEXT): the name of the coach of the team.
Example: SELECT coach FROM teams WHERE country ILIKE '%Spain%'.

Table players: players of the competition.
- player_id (INT, primary key)
- player_name (TEXT)
- team_id (INT, references teams.team_id)
- age (INT)
- player_position (TEXT)
Example: SELECT * FROM players WHERE player_name ILIKE '%Aitana%'.

Table players_stats: per-player statistics.
- id (INT, primary key)
- player_id (INT, references players.player_id)
- goals (INT), assists (INT), penalties (INT)
- matches_played (INT), minutes_played (INT)
- yellow_cards (INT), red_cards (INT)
When asked about a player's performance, always join players_stats with players and return all available stats:
SELECT * FROM players_stats JOIN players ON players.player_id = players_stats.player_id WHERE players.player_name ILIKE '%Aitana%'.

Table groups: groups of the competition.
- group_id (INT, primary key)
- group_name (TEXT)

Table stadiums: stadiums of the competition.
- stadium_id (INT, primary key)
- stadium_name (TEXT)
- city (TEXT)

Table competition_stages: stages of the competition.
- stage_id (INT, primary key)
- stage_name (TEXT): e.g. 'Group Stage', 'Quarter Finals', 'Semi Finals', 'Final'.

Table matches: matches of the competition. Always join teams (on home_team_id and away_team_id) to
select teams.country and join stadiums to select stadiums.stadium_name; never return raw ids.
- match_id (INT, primary key)
- group_id (INT, references groups.group_id)
- stage_id (INT, references competition_stages.stage_id)
- home_team_id (INT, references teams.team_id)
- away_team_id (INT, references teams.team_id)
- home_score (INT), away_score (INT): NULL until the match has been played.
- stadium_id (INT, references stadiums.stadium_id)
- match_datetime (TIMESTAMP)
Example, all matches of Spain:
SELECT m.match_datetime, ht.country AS home_team, at.country AS away_team, s.stadium_name
FROM matches m
LEFT JOIN teams ht ON ht.team_id = m.home_team_id
LEFT JOIN teams at ON at.team_id = m.away_team_id
JOIN stadiums s ON s.stadium_id = m.stadium_id
WHERE ht.country ILIKE '%Spain%' OR at.country ILIKE '%Spain%'.
Example, remaining matches of Group C:
SELECT m.match_datetime, ht.country AS home_team, at.country AS away_team
FROM matches m
JOIN teams ht ON ht.team_id = m.home_team_id
JOIN teams at ON at.team_id = m.away_team_id
JOIN groups g ON g.group_id = m.group_id
WHERE g.group_name = 'C' AND m.match_datetime > CURRENT_DATE
ORDER BY m.match_datetime ASC.

Table group_standings: group standings of the competition. Always join teams to select teams.country for display.
- position_id (INT, primary key)
- group_id (INT, references groups.group_id)
- team_id (INT, references teams.team_id)
- points (INT), matches_played (INT), wins (INT), draws (INT), losses (INT)
- goals_for (INT), goals_against (INT), goal_difference (INT)
- group_position (INT)
Example, standings of Group B:
SELECT g.group_name, t.country, gs.points, gs.goal_difference, gs.group_position
FROM group_standings gs
JOIN groups g ON g.group_id = gs.group_id
JOIN teams t ON t.team_id = gs.team_id
WHERE g.group_name = 'B'
ORDER BY gs.group_position ASC.`

// SchemaCache serves the schema documentation fed to the model. Sampling the
// database for example rows is expensive, so the rendered document is cached
// process-wide with a TTL; refreshes collapse through singleflight so at most
// one rebuild is in flight, and stale reads are served while it runs.
type SchemaCache struct {
	db  *sql.DB
	ttl time.Duration

	sf singleflight.Group

	mu            sync.RWMutex
	doc           string
	lastRefreshed time.Time

	build func(ctx context.Context) (string, error)
}

func NewSchemaCache(db *sql.DB, ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = defaultSchemaTTL
	}
	c := &SchemaCache{db: db, ttl: ttl}
	c.build = c.buildDoc
	return c
}

// Doc returns the schema documentation, rebuilding it when the TTL expired.
// A failed rebuild falls back to the previous document when one exists.
func (c *SchemaCache) Doc(ctx context.Context) (string, error) {
	c.mu.RLock()
	doc := c.doc
	fresh := doc != "" && time.Since(c.lastRefreshed) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return doc, nil
	}

	v, err, _ := c.sf.Do("schema", func() (any, error) {
		c.mu.RLock()
		if c.doc != "" && time.Since(c.lastRefreshed) < c.ttl {
			d := c.doc
			c.mu.RUnlock()
			return d, nil
		}
		c.mu.RUnlock()

		d, err := c.build(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.doc = d
		c.lastRefreshed = time.Now()
		c.mu.Unlock()
		return d, nil
	})
	if err != nil {
		if doc != "" {
			logx.Warn().Err(err).Msg("schema refresh failed, serving stale document")
			return doc, nil
		}
		return "", err
	}
	return v.(string), nil
}

// buildDoc renders the curated table documentation plus a few sample rows per
// table. Sampling failures degrade to the curated text alone.
func (c *SchemaCache) buildDoc(ctx context.Context) (string, error) {
	if c.db == nil {
		return tableDocs, nil
	}

	var b strings.Builder
	b.WriteString(tableDocs)
	for _, table := range tournamentTables {
		sample, err := c.sampleTable(ctx, table)
		if err != nil {
			logx.Warn().Err(err).Str("table", table).Msg("failed to sample table rows")
			continue
		}
		if sample != "" && sample != Sentinel {
			fmt.Fprintf(&b, "\n\nSample rows from %s:\n%s", table, sample)
		}
	}
	return b.String(), nil
}

func (c *SchemaCache) sampleTable(ctx context.Context, table string) (string, error) {
	// table names come from the fixed tournamentTables list, never from input
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, sampleRowsPerTable))
	if err != nil {
		return "", err
	}
	defer rows.Close()
	return formatRows(rows, sampleRowsPerTable)
}
