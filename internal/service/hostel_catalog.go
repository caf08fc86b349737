package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// Hostel numbers run from 1 to 8 on campus.
const (
	minHostelNumber = 1
	maxHostelNumber = 8
)

// HostelCatalog knows which hostels exist and which ones are premium.
type HostelCatalog struct {
	premium map[int]struct{}
	named   map[string]struct{}
}

// NewHostelCatalog builds a catalog from the configured premium numbers and named hostels.
func NewHostelCatalog(premiumNumbers []int, namedHostels []string) *HostelCatalog {
	c := &HostelCatalog{
		premium: make(map[int]struct{}, len(premiumNumbers)),
		named:   make(map[string]struct{}, len(namedHostels)),
	}
	for _, n := range premiumNumbers {
		c.premium[n] = struct{}{}
	}
	for _, name := range namedHostels {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			c.named[trimmed] = struct{}{}
		}
	}
	return c
}

// DefaultHostelCatalog mirrors the campus defaults.
func DefaultHostelCatalog() *HostelCatalog {
	return NewHostelCatalog([]int{2, 3, 4, 5, 7, 8}, []string{"aminity", "largedinning-2"})
}

// BlockFor maps a hostel number to its tier.
func (c *HostelCatalog) BlockFor(number int) models.BlockType {
	if _, ok := c.premium[number]; ok {
		return models.BlockPremium
	}
	return models.BlockNormal
}

// ValidNumber reports whether n is a real hostel number.
func (c *HostelCatalog) ValidNumber(n int) bool {
	return n >= minHostelNumber && n <= maxHostelNumber
}

// ValidateRef checks a student-supplied hostel reference: numbers must be in
// range and names must be on the allowlist.
func (c *HostelCatalog) ValidateRef(ref models.HostelRef) error {
	switch {
	case ref.IsZero():
		return appErrors.Clone(appErrors.ErrValidation, "hostel reference is empty")
	case ref.IsNumber():
		if !c.ValidNumber(ref.Number()) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("hostel number %d out of range", ref.Number()))
		}
	default:
		if _, ok := c.named[ref.Name()]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown hostel %q", ref.Name()))
		}
	}
	return nil
}

// ValidateRefs validates every entry of a preference list.
func (c *HostelCatalog) ValidateRefs(refs models.HostelRefs) error {
	for _, ref := range refs {
		if err := c.ValidateRef(ref); err != nil {
			return err
		}
	}
	return nil
}
