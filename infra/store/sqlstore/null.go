package sqlstore

import (
	"database/sql"
	"time"
)

func nf(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func ns(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ni(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// nt stores timestamps as unix seconds.
func nt(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Unix()
}

func pf(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func ps(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func pi(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func pt(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	v := time.Unix(n.Int64, 0).UTC()
	return &v
}
