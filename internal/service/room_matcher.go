package service

import (
	"context"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type candidateFinder interface {
	FindCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.Room, error)
}

// BuildCandidateFilter turns preferences into the exact-match storage filter.
// Seater and AC always apply; block, amenities and hostels only when requested.
func BuildCandidateFilter(prefs models.RoomPreferences) models.CandidateFilter {
	filter := models.CandidateFilter{
		Seater:          prefs.Seater,
		AC:              prefs.AC,
		LargeDining:     prefs.Amenities.LargeDining,
		ExtraFacilities: prefs.Amenities.ExtraFacilities,
	}
	if prefs.Block != nil {
		block := *prefs.Block
		filter.BlockType = &block
	}
	filter.HostelNumbers, filter.HostelNames = prefs.Hostels.Split()
	return filter
}

// FirstFit returns the first room with a free bed, in the given order.
func FirstFit(rooms []models.Room) *models.Room {
	for i := range rooms {
		if rooms[i].HasSpace() {
			room := rooms[i]
			return &room
		}
	}
	return nil
}

// RoomMatcher finds rooms for a set of preferences using first-fit.
type RoomMatcher struct {
	rooms candidateFinder
}

// NewRoomMatcher constructs a matcher over the room registry.
func NewRoomMatcher(rooms candidateFinder) *RoomMatcher {
	return &RoomMatcher{rooms: rooms}
}

// FindMatchingRoom returns the first eligible room with spare capacity, or nil.
func (m *RoomMatcher) FindMatchingRoom(ctx context.Context, prefs models.RoomPreferences) (*models.Room, error) {
	rooms, err := m.rooms.FindCandidates(ctx, BuildCandidateFilter(prefs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate rooms")
	}
	return FirstFit(rooms), nil
}

// Candidates returns every eligible room that currently has a free bed, in
// storage order. The allocator walks this list so a room filled by a
// concurrent request is skipped instead of failing the assignment.
func (m *RoomMatcher) Candidates(ctx context.Context, prefs models.RoomPreferences) ([]models.Room, error) {
	rooms, err := m.rooms.FindCandidates(ctx, BuildCandidateFilter(prefs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate rooms")
	}
	open := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.HasSpace() {
			open = append(open, room)
		}
	}
	return open, nil
}
