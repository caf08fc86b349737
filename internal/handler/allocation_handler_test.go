package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type allocationServiceMock struct {
	lastStudent string
	lastPrefs   dto.SetPreferencesRequest
	profile     *models.ProfileDetail
	batch       *models.BatchAssignResult
	err         error
	deleted     bool
}

func (m *allocationServiceMock) SetPreferences(ctx context.Context, studentID string, req dto.SetPreferencesRequest) (*models.StudentProfile, error) {
	m.lastStudent = studentID
	m.lastPrefs = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.StudentProfile{UserID: studentID, PreferredSeater: req.PreferredSeater}, nil
}

func (m *allocationServiceMock) DeletePreferences(ctx context.Context, studentID string) error {
	m.lastStudent = studentID
	m.deleted = m.err == nil
	return m.err
}

func (m *allocationServiceMock) GetProfile(ctx context.Context, studentID string) (*models.ProfileDetail, error) {
	m.lastStudent = studentID
	return m.profile, m.err
}

func (m *allocationServiceMock) AutoAssign(ctx context.Context, studentID string) (*models.ProfileDetail, error) {
	m.lastStudent = studentID
	return m.profile, m.err
}

func (m *allocationServiceMock) BatchAutoAssign(ctx context.Context, actorID string) (*models.BatchAssignResult, error) {
	m.lastStudent = actorID
	return m.batch, m.err
}

func TestAllocationHandlerSetPreferences(t *testing.T) {
	svc := &allocationServiceMock{}
	h := NewAllocationHandler(svc)

	c, w := newContext(http.MethodPost, "/student/preferences",
		`{"foodPreference":"vegetarian","preferredSeater":2,"preferredAC":true,"preferredHostels":[3,"aminity"]}`, studentClaims)
	h.SetPreferences(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", svc.lastStudent)
	assert.Equal(t, 2, svc.lastPrefs.PreferredSeater)
	require.Len(t, svc.lastPrefs.PreferredHostels, 2)
}

func TestAllocationHandlerSetPreferencesRejectsBadJSON(t *testing.T) {
	svc := &allocationServiceMock{}
	h := NewAllocationHandler(svc)

	c, w := newContext(http.MethodPost, "/student/preferences", `{"preferredSeater":`, studentClaims)
	h.SetPreferences(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastStudent)
}

func TestAllocationHandlerRequiresClaims(t *testing.T) {
	h := NewAllocationHandler(&allocationServiceMock{})

	c, w := newContext(http.MethodPost, "/student/assign", "", nil)
	h.Assign(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAllocationHandlerAssignMapsErrors(t *testing.T) {
	cases := map[*appErrors.Error]int{
		appErrors.ErrPreferencesNotSet: http.StatusBadRequest,
		appErrors.ErrAlreadyAssigned:   http.StatusConflict,
		appErrors.ErrNoRoomAvailable:   http.StatusNotFound,
	}
	for appErr, status := range cases {
		h := NewAllocationHandler(&allocationServiceMock{err: appErr})
		c, w := newContext(http.MethodPost, "/student/assign", "", studentClaims)
		h.Assign(c)

		assert.Equal(t, status, w.Code, appErr.Code)
		env := decode(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, appErr.Code, env.Error.Code)
	}
}

func TestAllocationHandlerGetPreferencesOmitsRoom(t *testing.T) {
	roomID := "room-1"
	svc := &allocationServiceMock{profile: &models.ProfileDetail{
		StudentProfile: models.StudentProfile{UserID: "student-1", AssignedRoomID: &roomID},
		AssignedRoom:   &models.Room{ID: roomID},
	}}
	h := NewAllocationHandler(svc)

	c, w := newContext(http.MethodGet, "/student/preferences", "", studentClaims)
	h.GetPreferences(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(decode(t, w).Data), "assignedRoom\"")

	c, w = newContext(http.MethodGet, "/student/profile", "", studentClaims)
	h.Profile(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), "assignedRoom\"")
}

func TestAllocationHandlerDeletePreferences(t *testing.T) {
	svc := &allocationServiceMock{}
	h := NewAllocationHandler(svc)

	c, w := newContext(http.MethodDelete, "/student/preferences", "", studentClaims)
	h.DeletePreferences(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.deleted)
}

func TestAllocationHandlerBatchAssign(t *testing.T) {
	svc := &allocationServiceMock{batch: &models.BatchAssignResult{Processed: 2, Assigned: 1, Unassigned: 1}}
	h := NewAllocationHandler(svc)

	c, w := newContext(http.MethodPost, "/admin/assign/batch", "", adminClaims)
	h.BatchAssign(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", svc.lastStudent)
	assert.Contains(t, string(decode(t, w).Data), `"assigned":1`)
}
