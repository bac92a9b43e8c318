package repo

import (
	"context"

	"tufline/internal/domain"
)

// LatestAuditEvents returns up to limit audit entries, newest first.
func (r Repo) LatestAuditEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.AuditEvent, error) {
	var w where
	if evtType != "" {
		w.eq("type", evtType)
	}
	if entityKind != "" {
		w.eq("entity_kind", entityKind)
	}
	if entityID != "" {
		w.eq("entity_id", entityID)
	}
	query := `SELECT id, ts, type, entity_kind, COALESCE(entity_id,''), actor_id, payload_json FROM audit_events` + w.sql() + ` ORDER BY id DESC`
	args := w.args
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
