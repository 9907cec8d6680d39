package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/willow/internal/model"
	"github.com/sells-group/willow/pkg/fub"
)

func TestLeadFromPerson(t *testing.T) {
	p := &fub.Person{
		ID:        "123",
		FirstName: "Pat",
		LastName:  "Seller",
		Emails: []fub.Email{
			{Value: "old@example.com"},
			{Value: "pat@example.com", IsPrimary: 1},
		},
		Addresses: []fub.Address{
			{Street: "12 Main St", City: "Poughkeepsie", State: "NY", Code: "12601", Type: "home"},
		},
		Custom: map[string]string{
			"customFelloLeadScore":        "80",
			"customFelloDashboardClicks":  "12",
			"customFelloSellingTimeline":  "within 30 days",
			"customCloudCMAViews":         "3",
			"customCloudCMALastViewed":    "2026-03-10",
			"customHomebeatURL":           "https://homebeat.example/r/1",
			"customSierraPropertyViews":   "15",
			"customSierraShowingRequests": "1",
			FieldScore:                    "67",
			FieldPriority:                 "hot",
			FieldCMALink:                  "https://cloudcma.example/r/9",
			FieldCenterValue:              "$850,000",
		},
	}

	lead := LeadFromPerson(p)

	assert.Equal(t, "123", lead.ID)
	assert.Equal(t, "pat@example.com", lead.Email)
	assert.Contains(t, lead.Address, "Poughkeepsie")

	assert.Equal(t, 80, lead.Fello.LeadScore)
	assert.Equal(t, 12, lead.Fello.DashboardClicks)
	assert.Equal(t, "within 30 days", lead.Fello.SellingTimeline)

	assert.Equal(t, 3, lead.CloudCMA.Views)
	require.NotNil(t, lead.CloudCMA.LastViewedAt)
	assert.True(t, lead.CloudCMA.ReportExists)
	assert.Equal(t, "https://homebeat.example/r/1", lead.CloudCMA.HomebeatURL)

	assert.Equal(t, 67, lead.Willow.PreviousScore)
	assert.Equal(t, model.TierHot, lead.Willow.PriorityTier)
	assert.Equal(t, int64(850_000), lead.Willow.CenterValue)

	require.NotNil(t, lead.Sierra)
	assert.Equal(t, 15, lead.Sierra.PropertyViews)
	assert.Equal(t, 1, lead.Sierra.ShowingRequests)
}

func TestLeadFromPersonSparse(t *testing.T) {
	p := &fub.Person{
		ID:     "456",
		Custom: map[string]string{},
	}

	lead := LeadFromPerson(p)
	assert.Equal(t, "456", lead.ID)
	assert.Zero(t, lead.Fello.LeadScore)
	assert.False(t, lead.CloudCMA.ReportExists)
	assert.Nil(t, lead.Sierra, "absent platform stays absent, not zero-valued")
}

func TestLeadFromPersonMalformedValues(t *testing.T) {
	p := &fub.Person{
		ID: "789",
		Custom: map[string]string{
			"customFelloLeadScore":     "high",
			"customCloudCMALastViewed": "last tuesday",
			FieldCenterValue:           "call for price",
		},
	}

	lead := LeadFromPerson(p)
	assert.Zero(t, lead.Fello.LeadScore)
	assert.Nil(t, lead.CloudCMA.LastViewedAt)
	assert.Zero(t, lead.Willow.CenterValue)
}
