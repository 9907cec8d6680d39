package crm

import (
	"strings"

	"github.com/sells-group/willow/internal/model"
	"github.com/sells-group/willow/pkg/fub"
)

// LeadFromPerson builds a LeadRecord from a Follow Up Boss person. Every
// signal is optional: platforms sync their fields independently and a lead
// may exist on any subset of them. Missing or malformed values contribute
// nothing to scoring.
func LeadFromPerson(p *fub.Person) model.LeadRecord {
	c := p.Custom

	lead := model.LeadRecord{
		ID:        p.ID.String(),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Fello: model.FelloSignals{
			LeadScore:       parseInt(c[fieldFelloLeadScore]),
			DashboardClicks: parseInt(c[fieldFelloDashboardClicks]),
			EmailClicks:     parseInt(c[fieldFelloEmailClicks]),
			FormSubmissions: parseInt(c[fieldFelloFormSubmissions]),
			SellingTimeline: c[fieldFelloTimeline],
			PropertiesOwned: parseInt(c[fieldFelloPropertiesOwned]),
		},
		CloudCMA: model.CloudCMASignals{
			Views:        parseInt(c[fieldCloudCMAViews]),
			LastViewedAt: parseTime(c[fieldCloudCMALastViewed]),
			ReportExists: c[FieldCMALink] != "",
			HomebeatURL:  c[fieldHomebeatURL],
		},
		Willow: model.WillowSignals{
			PreviousScore: parseInt(c[FieldScore]),
			LastCMADate:   parseTime(c[FieldLastCMADate]),
			CenterValue:   parseInt64(c[FieldCenterValue]),
			PriorityTier:  model.PriorityTier(strings.ToUpper(strings.TrimSpace(c[FieldPriority]))),
			CMALink:       c[FieldCMALink],
		},
	}

	if hasSierraSignals(c) {
		lead.Sierra = &model.SierraSignals{
			PropertyViews:   parseInt(c[fieldSierraPropertyViews]),
			SavedListings:   parseInt(c[fieldSierraSavedListings]),
			ShowingRequests: parseInt(c[fieldSierraShowingRequests]),
			ActivityLevel:   c[fieldSierraActivityLevel],
			VelocityTrend:   c[fieldSierraVelocity],
		}
	}

	for _, e := range p.Emails {
		if e.IsPrimary == 1 || lead.Email == "" {
			lead.Email = e.Value
		}
	}
	for _, a := range p.Addresses {
		if a.Type == "home" || lead.Address == "" {
			lead.Address = model.Address{
				Line:       a.Street,
				City:       a.City,
				State:      a.State,
				PostalCode: a.Code,
			}.String()
		}
	}

	return lead
}

func hasSierraSignals(c map[string]string) bool {
	for _, k := range []string{
		fieldSierraPropertyViews,
		fieldSierraSavedListings,
		fieldSierraShowingRequests,
		fieldSierraActivityLevel,
		fieldSierraVelocity,
	} {
		if strings.TrimSpace(c[k]) != "" {
			return true
		}
	}
	return false
}
