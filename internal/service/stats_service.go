package service

import (
	"context"

	"contactbook/backend/internal/model"
	"contactbook/backend/internal/repository"
)

// StatsService computes per-owner dashboard counts. It propagates store
// failures; the degraded all-zero fallback is a transport-layer decision, not
// made here.
type StatsService struct {
	contacts repository.ContactStore
}

func NewStatsService(contacts repository.ContactStore) *StatsService {
	return &StatsService{contacts: contacts}
}

func (s *StatsService) Stats(ctx context.Context, ownerID uint64) (model.ContactStats, error) {
	if ownerID == 0 {
		return model.ContactStats{}, invalidInput("invalid user id")
	}
	return s.contacts.CountStats(ctx, ownerID)
}
