package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

func TestHostelCatalogBlockFor(t *testing.T) {
	catalog := DefaultHostelCatalog()
	for _, n := range []int{2, 3, 4, 5, 7, 8} {
		assert.Equal(t, models.BlockPremium, catalog.BlockFor(n), "hostel %d", n)
	}
	assert.Equal(t, models.BlockNormal, catalog.BlockFor(1))
	assert.Equal(t, models.BlockNormal, catalog.BlockFor(6))
}

func TestHostelCatalogValidateRefs(t *testing.T) {
	catalog := NewHostelCatalog([]int{3}, []string{" aminity ", ""})

	assert.NoError(t, catalog.ValidateRefs(models.HostelRefs{models.HostelByNumber(1), models.HostelByName("aminity")}))
	assert.NoError(t, catalog.ValidateRefs(nil))
	assert.ErrorIs(t, catalog.ValidateRef(models.HostelByNumber(9)), appErrors.ErrValidation)
	assert.ErrorIs(t, catalog.ValidateRef(models.HostelByName("largedinning-2")), appErrors.ErrValidation)
	assert.ErrorIs(t, catalog.ValidateRef(models.HostelRef{}), appErrors.ErrValidation)
	assert.ErrorIs(t, catalog.ValidateRefs(models.HostelRefs{models.HostelByNumber(2), models.HostelByNumber(0)}), appErrors.ErrValidation)
}
