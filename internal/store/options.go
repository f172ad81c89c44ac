package store

import (
	"gorm.io/gorm"

	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/store/model"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type RerunQueryFilter BaseQuerier

func NewRerunQueryFilter() *RerunQueryFilter {
	return &RerunQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *RerunQueryFilter) ByDestination(key coursekey.Key) *RerunQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("destination_key = ?", key.String())
	})
	return qf
}

func (qf *RerunQueryFilter) BySource(key coursekey.Key) *RerunQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("source_key = ?", key.String())
	})
	return qf
}

func (qf *RerunQueryFilter) ByState(state model.RerunState) *RerunQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("state = ?", state)
	})
	return qf
}

func (qf *RerunQueryFilter) ExcludeState(state model.RerunState) *RerunQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("state <> ?", state)
	})
	return qf
}

func (qf *RerunQueryFilter) ByCreatedBy(username string) *RerunQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_by = ?", username)
	})
	return qf
}
