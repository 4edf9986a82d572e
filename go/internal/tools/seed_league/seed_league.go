package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pietro1412/fantacontratti/go/internal/dbconfig"
)

// League mirrors go/internal/assets/league.json
type League struct {
	ID      uuid.UUID `json:"id"`
	Members []Member  `json:"members"`
}

type Member struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	TeamBudget int        `json:"team_budget"`
	Contracts  []Contract `json:"contracts"`
}

type Contract struct {
	ID         uuid.UUID `json:"id"`
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Salary     int       `json:"salary"`
	Duration   int       `json:"duration"`
	Clause     int       `json:"clause"`
}

func main() {
	ctx := context.Background()

	// 1) Load schema and league snapshot
	schema, err := os.ReadFile("go/internal/rubata/db/schema.sql")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read schema.sql: %v\n", err)
		os.Exit(1)
	}
	data, err := os.ReadFile(getEnv("LEAGUE_FILE", "go/internal/assets/league.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read league.json: %v\n", err)
		os.Exit(1)
	}
	var league League
	if err := json.Unmarshal(data, &league); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal league: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	poolConfig, err := dbconfig.NewConfigFromEnv().PoolConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "database config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Apply schema, no arguments so pgx runs it as one simple-protocol batch
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 4) Seed members and their contracts
	members, contracts, skipped, errs := 0, 0, 0, 0
	for _, m := range league.Members {
		tag, err := pool.Exec(ctx, `
            INSERT INTO league_members (id, league_id, name, team_budget)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO NOTHING
        `, m.ID, league.ID, m.Name, m.TeamBudget)
		if err != nil {
			fmt.Fprintf(os.Stderr, "member %s: %v\n", m.Name, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			members++
		} else {
			skipped++
		}

		for _, c := range m.Contracts {
			tag, err := pool.Exec(ctx, `
                INSERT INTO roster_contracts (
                  id, league_id, member_id, player_id, player_name,
                  salary, duration, clause
                ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
                ON CONFLICT (id) DO NOTHING
            `, c.ID, league.ID, m.ID, c.PlayerID, c.PlayerName, c.Salary, c.Duration, c.Clause)
			if err != nil {
				fmt.Fprintf(os.Stderr, "contract %s: %v\n", c.PlayerName, err)
				errs++
				continue
			}
			if tag.RowsAffected() == 1 {
				contracts++
			} else {
				skipped++
			}
		}
	}
	fmt.Printf(
		"League %s seed: members=%d contracts=%d skipped=%d errors=%d\n",
		league.ID, members, contracts, skipped, errs,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
