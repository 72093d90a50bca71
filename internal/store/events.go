package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rampline/internal/domain"
)

type EventFilters struct {
	CompanyID string
	Entity    string
	EntityID  string
	Action    string
	Limit     int
}

func (s Store) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"company_id=?"}
	args := []any{f.CompanyID}
	if f.Entity != "" {
		clauses = append(clauses, "entity=?")
		args = append(args, f.Entity)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,company_id,entity,entity_id,action,actor_id,payload_json,ts FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, actorID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Entity, &entityID, &e.Action, &actorID, &payload, &e.TS); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if actorID.Valid {
			e.ActorID = actorID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
