package cachestore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/mvm-bridge/pkg/query"
)

// CacheEntryDao maps to the 'query_cache' table.
// Data is stored as text so the persisted bytes round-trip exactly.
type CacheEntryDao struct {
	bun.BaseModel `bun:"table:query_cache,alias:qc"`
	Key           string    `bun:"key,pk,type:varchar(512)"`
	Kind          string    `bun:"kind,notnull,type:varchar(64)"`
	Data          string    `bun:"data,notnull,type:text"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
	AccessedAt    time.Time `bun:"accessed_at,notnull"`
	CacheTimeNs   int64     `bun:"cache_time_ns,notnull"`
	StaleTimeNs   int64     `bun:"stale_time_ns,notnull"`
	Invalidated   bool      `bun:"invalidated,notnull,default:false"`
}

func toEntryDao(e query.Entry) *CacheEntryDao {
	return &CacheEntryDao{
		Key:         e.Key,
		Kind:        e.Kind,
		Data:        string(e.Data),
		UpdatedAt:   e.UpdatedAt.UTC(),
		AccessedAt:  e.AccessedAt.UTC(),
		CacheTimeNs: int64(e.CacheTime),
		StaleTimeNs: int64(e.StaleTime),
		Invalidated: e.Invalidated,
	}
}

func toEntry(dao *CacheEntryDao) query.Entry {
	return query.Entry{
		Key:         dao.Key,
		Kind:        dao.Kind,
		Data:        json.RawMessage(dao.Data),
		UpdatedAt:   dao.UpdatedAt.UTC(),
		AccessedAt:  dao.AccessedAt.UTC(),
		CacheTime:   time.Duration(dao.CacheTimeNs),
		StaleTime:   time.Duration(dao.StaleTimeNs),
		Invalidated: dao.Invalidated,
	}
}
