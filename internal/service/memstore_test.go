package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. WithinTx
// serializes transactions and restores a snapshot when fn fails, which is
// what the real store gives us through a rolled back transaction.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	rooms        map[string]*models.Room
	roomOrder    []string
	profiles     map[string]*models.StudentProfile
	profileOrder []string
	swaps        map[string]*models.SwapRequest
	apps         map[string]*models.ChangeApplication
	audits       []*models.AuditLog
	seq          int
	clock        time.Time

	// hook runs before every mutating call; a non-nil error aborts the call.
	hook func(op string) error
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		rooms:    map[string]*models.Room{},
		profiles: map[string]*models.StudentProfile{},
		swaps:    map[string]*models.SwapRequest{},
		apps:     map[string]*models.ChangeApplication{},
		clock:    time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) check(op string) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(op)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	rooms        map[string]models.Room
	roomOrder    []string
	profiles     map[string]models.StudentProfile
	profileOrder []string
	swaps        map[string]models.SwapRequest
	apps         map[string]models.ChangeApplication
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		rooms:        make(map[string]models.Room, len(s.rooms)),
		roomOrder:    append([]string(nil), s.roomOrder...),
		profiles:     make(map[string]models.StudentProfile, len(s.profiles)),
		profileOrder: append([]string(nil), s.profileOrder...),
		swaps:        make(map[string]models.SwapRequest, len(s.swaps)),
		apps:         make(map[string]models.ChangeApplication, len(s.apps)),
	}
	for id, room := range s.rooms {
		copied := *room
		copied.Occupants = append([]string(nil), room.Occupants...)
		snap.rooms[id] = copied
	}
	for id, p := range s.profiles {
		snap.profiles[id] = *p
	}
	for id, sw := range s.swaps {
		snap.swaps[id] = *sw
	}
	for id, app := range s.apps {
		snap.apps[id] = *app
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.rooms = make(map[string]*models.Room, len(snap.rooms))
	for id, room := range snap.rooms {
		r := room
		s.rooms[id] = &r
	}
	s.roomOrder = snap.roomOrder
	s.profiles = make(map[string]*models.StudentProfile, len(snap.profiles))
	for id, p := range snap.profiles {
		copied := p
		s.profiles[id] = &copied
	}
	s.profileOrder = snap.profileOrder
	s.swaps = make(map[string]*models.SwapRequest, len(snap.swaps))
	for id, sw := range snap.swaps {
		copied := sw
		s.swaps[id] = &copied
	}
	s.apps = make(map[string]*models.ChangeApplication, len(snap.apps))
	for id, app := range snap.apps {
		copied := app
		s.apps[id] = &copied
	}
}

// addRoom seeds a room and returns its id.
func (s *memStore) addRoom(room models.Room) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.ID == "" {
		room.ID = s.nextID("room")
	}
	if room.Capacity == 0 {
		room.Capacity = room.Seater
	}
	if room.BlockType == "" {
		room.BlockType = models.BlockNormal
	}
	room.CreatedAt = s.tick()
	room.Occupied = len(room.Occupants)
	s.rooms[room.ID] = &room
	s.roomOrder = append(s.roomOrder, room.ID)
	return room.ID
}

func (s *memStore) room(id string) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := *s.rooms[id]
	room.Occupants = append([]string(nil), room.Occupants...)
	return room
}

func (s *memStore) profile(userID string) *models.StudentProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil
	}
	copied := *p
	return &copied
}

// Rooms.

type memRooms struct{ *memStore }

func (r memRooms) FindByID(ctx context.Context, id string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *room
	copied.Occupants = append([]string(nil), room.Occupants...)
	return &copied, nil
}

func (r memRooms) FindCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Room{}
	for _, id := range r.roomOrder {
		room := *r.rooms[id]
		if filter.Matches(room) {
			room.Occupants = append([]string(nil), room.Occupants...)
			out = append(out, room)
		}
	}
	return out, nil
}

func (r memRooms) AddOccupant(ctx context.Context, roomID, studentID string) error {
	if err := r.check("AddOccupant"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || room.Occupied >= room.Capacity {
		return repository.ErrRoomFull
	}
	for _, other := range r.rooms {
		for _, occupant := range other.Occupants {
			if occupant == studentID {
				return fmt.Errorf("student %s already occupies room %s", studentID, other.ID)
			}
		}
	}
	room.Occupants = append(room.Occupants, studentID)
	room.Occupied++
	return nil
}

func (r memRooms) RemoveOccupant(ctx context.Context, roomID, studentID string) error {
	if err := r.check("RemoveOccupant"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return repository.ErrNotOccupant
	}
	for i, occupant := range room.Occupants {
		if occupant == studentID {
			room.Occupants = append(room.Occupants[:i:i], room.Occupants[i+1:]...)
			room.Occupied--
			return nil
		}
	}
	return repository.ErrNotOccupant
}

func (r memRooms) Upsert(ctx context.Context, room *models.Room) (*models.Room, error) {
	if err := r.check("Upsert"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.roomOrder {
		existing := r.rooms[id]
		if sameRoomKey(existing, room) {
			if room.Capacity < existing.Occupied {
				return nil, repository.ErrCapacityBelowOccupancy
			}
			existing.BlockType = room.BlockType
			existing.Amenities = room.Amenities
			existing.Capacity = room.Capacity
			copied := *existing
			return &copied, nil
		}
	}
	saved := *room
	saved.ID = r.nextID("room")
	saved.CreatedAt = r.tick()
	r.rooms[saved.ID] = &saved
	r.roomOrder = append(r.roomOrder, saved.ID)
	copied := saved
	return &copied, nil
}

func sameRoomKey(a, b *models.Room) bool {
	return intOrZero(a.HostelNumber) == intOrZero(b.HostelNumber) &&
		strOrEmpty(a.HostelName) == strOrEmpty(b.HostelName) &&
		a.Seater == b.Seater && a.AC == b.AC &&
		strOrEmpty(a.RoomLabel) == strOrEmpty(b.RoomLabel)
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (r memRooms) ListAvailability(ctx context.Context, filter models.RoomFilter) ([]models.RoomAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.RoomAvailability{}
	for _, id := range r.roomOrder {
		room := r.rooms[id]
		if filter.Seater != nil && room.Seater != *filter.Seater {
			continue
		}
		if filter.AC != nil && room.AC != *filter.AC {
			continue
		}
		if filter.BlockType != nil && room.BlockType != *filter.BlockType {
			continue
		}
		if filter.HostelNumber != nil && intOrZero(room.HostelNumber) != *filter.HostelNumber {
			continue
		}
		if filter.HostelName != nil && strOrEmpty(room.HostelName) != *filter.HostelName {
			continue
		}
		out = append(out, models.RoomAvailability{
			ID: room.ID, HostelNumber: room.HostelNumber, HostelName: room.HostelName, BlockType: room.BlockType,
			Seater: room.Seater, AC: room.AC, Capacity: room.Capacity, Occupied: room.Occupied,
			Available: room.Available(), Amenities: room.Amenities, RoomLabel: room.RoomLabel,
		})
	}
	return out, nil
}

func (r memRooms) OccupancyByBedType(ctx context.Context) ([]models.OccupancyStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buckets := map[[2]int]*models.OccupancyStats{}
	for _, room := range r.rooms {
		ac := 0
		if room.AC {
			ac = 1
		}
		key := [2]int{room.Seater, ac}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &models.OccupancyStats{Seater: room.Seater, AC: room.AC}
			buckets[key] = bucket
		}
		bucket.Rooms++
		bucket.Capacity += room.Capacity
		bucket.Occupied += room.Occupied
	}
	out := make([]models.OccupancyStats, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seater != out[j].Seater {
			return out[i].Seater < out[j].Seater
		}
		return !out[i].AC && out[j].AC
	})
	return out, nil
}

// Profiles.

type memProfiles struct{ *memStore }

func (p memProfiles) FindByUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *profile
	return &copied, nil
}

func (p memProfiles) FindByUserForUpdate(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return p.FindByUser(ctx, userID)
}

func (p memProfiles) UpsertPreferences(ctx context.Context, profile *models.StudentProfile) (*models.StudentProfile, error) {
	if err := p.check("UpsertPreferences"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, ok := p.profiles[profile.UserID]
	if !ok {
		saved := *profile
		saved.ID = p.nextID("profile")
		saved.AssignedRoomID = nil
		saved.Status = models.ProfileStatusPending
		saved.CreatedAt = p.tick()
		p.profiles[saved.UserID] = &saved
		p.profileOrder = append(p.profileOrder, saved.UserID)
		copied := saved
		return &copied, nil
	}
	existing.FoodPreference = profile.FoodPreference
	existing.PreferredSeater = profile.PreferredSeater
	existing.PreferredAC = profile.PreferredAC
	existing.PreferredHostels = profile.PreferredHostels
	existing.PreferredBlock = profile.PreferredBlock
	existing.Amenities = profile.Amenities
	copied := *existing
	return &copied, nil
}

func (p memProfiles) SetAssignment(ctx context.Context, userID string, roomID *string, status models.ProfileStatus) error {
	if err := p.check("SetAssignment"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if roomID != nil {
		id := *roomID
		roomID = &id
	}
	profile.AssignedRoomID = roomID
	profile.Status = status
	return nil
}

func (p memProfiles) UpdateStatus(ctx context.Context, userID string, status models.ProfileStatus) error {
	if err := p.check("UpdateStatus"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if !ok || !profile.IsAssigned() {
		return sql.ErrNoRows
	}
	profile.Status = status
	return nil
}

func (p memProfiles) ListPending(ctx context.Context) ([]models.StudentProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []models.StudentProfile{}
	for _, id := range p.profileOrder {
		profile := p.profiles[id]
		if profile.Status == models.ProfileStatusPending && !profile.IsAssigned() {
			out = append(out, *profile)
		}
	}
	return out, nil
}

func (p memProfiles) Delete(ctx context.Context, userID string) error {
	if err := p.check("Delete"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.profiles[userID]; !ok {
		return sql.ErrNoRows
	}
	delete(p.profiles, userID)
	for i, id := range p.profileOrder {
		if id == userID {
			p.profileOrder = append(p.profileOrder[:i:i], p.profileOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (p memProfiles) CountByStatus(ctx context.Context) (map[string]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := map[string]int{}
	for _, profile := range p.profiles {
		counts[string(profile.Status)]++
	}
	return counts, nil
}

// Swaps.

type memSwaps struct{ *memStore }

func (s memSwaps) Create(ctx context.Context, swap *models.SwapRequest) error {
	if err := s.check("CreateSwap"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	swap.ID = s.nextID("swap")
	swap.CreatedAt = s.tick()
	copied := *swap
	s.swaps[swap.ID] = &copied
	return nil
}

func (s memSwaps) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swap, ok := s.swaps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *swap
	return &copied, nil
}

func (s memSwaps) List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SwapRequest{}
	for _, swap := range s.swaps {
		if filter.Status != nil && swap.Status != *filter.Status {
			continue
		}
		if filter.UserID != "" && swap.FromUser != filter.UserID && swap.ToUser != filter.UserID {
			continue
		}
		out = append(out, *swap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (s memSwaps) Resolve(ctx context.Context, id string, status models.SwapStatus, decidedBy string, decidedAt time.Time) error {
	if err := s.check("ResolveSwap"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	swap, ok := s.swaps[id]
	if !ok || swap.Status != models.SwapStatusPending {
		return repository.ErrNotPending
	}
	swap.Status = status
	swap.DecidedBy = &decidedBy
	swap.DecidedAt = &decidedAt
	return nil
}

func (s memSwaps) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, swap := range s.swaps {
		if swap.Status == models.SwapStatusPending {
			n++
		}
	}
	return n, nil
}

// Change applications.

type memApps struct{ *memStore }

func (a memApps) Create(ctx context.Context, app *models.ChangeApplication) error {
	if err := a.check("CreateApplication"); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	app.ID = a.nextID("app")
	app.CreatedAt = a.tick()
	copied := *app
	a.apps[app.ID] = &copied
	return nil
}

func (a memApps) GetByID(ctx context.Context, id string) (*models.ChangeApplication, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	app, ok := a.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (a memApps) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ChangeApplication, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []models.ChangeApplication{}
	for _, app := range a.apps {
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		if filter.UserID != "" && app.UserID != filter.UserID {
			continue
		}
		out = append(out, *app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

// page applies limit and offset the way the SQL listings do.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (a memApps) Resolve(ctx context.Context, id string, status models.ApplicationStatus, note *string, decidedBy string, decidedAt time.Time) error {
	if err := a.check("ResolveApplication"); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	app, ok := a.apps[id]
	if !ok || app.Status != models.ApplicationStatusPending {
		return repository.ErrNotPending
	}
	app.Status = status
	app.AdminNote = note
	app.DecidedBy = &decidedBy
	app.DecidedAt = &decidedAt
	return nil
}

func (a memApps) CountPending(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, app := range a.apps {
		if app.Status == models.ApplicationStatusPending {
			n++
		}
	}
	return n, nil
}

// Audit.

func (s *memStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, log)
	return nil
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.audits))
	for _, log := range s.audits {
		actions = append(actions, log.Action)
	}
	return actions
}

// assertInvariants checks capacity and single occupancy across the store.
func (s *memStore) assertInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]string{}
	for id, room := range s.rooms {
		if len(room.Occupants) > room.Capacity {
			return fmt.Errorf("room %s over capacity: %d/%d", id, len(room.Occupants), room.Capacity)
		}
		if len(room.Occupants) != room.Occupied {
			return fmt.Errorf("room %s counter drift: %d vs %d", id, room.Occupied, len(room.Occupants))
		}
		for _, student := range room.Occupants {
			if other, dup := seen[student]; dup {
				return fmt.Errorf("student %s in rooms %s and %s", student, other, id)
			}
			seen[student] = id
		}
	}
	for userID, profile := range s.profiles {
		roomID, inRoom := seen[userID]
		switch {
		case profile.IsAssigned() && !inRoom:
			return fmt.Errorf("student %s points at %s but occupies nothing", userID, *profile.AssignedRoomID)
		case profile.IsAssigned() && roomID != *profile.AssignedRoomID:
			return fmt.Errorf("student %s points at %s but occupies %s", userID, *profile.AssignedRoomID, roomID)
		case !profile.IsAssigned() && inRoom:
			return fmt.Errorf("student %s occupies %s without assignment", userID, roomID)
		}
	}
	return nil
}

var errInjected = errors.New("injected failure")
