package hubspot

import (
	"strings"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

const (
	ObjectContacts = "contacts"
	ObjectDeals    = "deals"
)

var LeadProperties = []string{
	"email",
	"firstname",
	"lastname",
	"lifecyclestage",
	"createdate",
	"hs_lastmodifieddate",
}

var DealProperties = []string{
	"dealname",
	"amount",
	"dealstage",
	"closedate",
	"createdate",
	"hs_lastmodifieddate",
}

func entityFor(objectType string) entity.EntityType {
	switch objectType {
	case ObjectContacts:
		return entity.EntityLeads
	case ObjectDeals:
		return entity.EntityDeals
	default:
		return entity.EntityType(objectType)
	}
}

// ToRawLead flattens a contact. Absent properties become "". The object's
// own timestamps stand in for missing createdate/hs_lastmodifieddate.
func ToRawLead(o Object) entity.RawLead {
	return entity.RawLead{
		ID:             strings.TrimSpace(o.ID),
		Email:          o.Prop("email"),
		FirstName:      o.Prop("firstname"),
		LastName:       o.Prop("lastname"),
		LifecycleStage: o.Prop("lifecyclestage"),
		CreatedAt:      firstNonBlank(o.Prop("createdate"), o.CreatedAt),
		LastModifiedAt: firstNonBlank(o.Prop("hs_lastmodifieddate"), o.UpdatedAt),
	}
}

// ToRawDeal flattens a deal. A missing amount becomes "0"; a missing close
// date stays "".
func ToRawDeal(o Object) entity.RawDeal {
	return entity.RawDeal{
		ID:             strings.TrimSpace(o.ID),
		Name:           o.Prop("dealname"),
		Amount:         firstNonBlank(o.Prop("amount"), "0"),
		Stage:          o.Prop("dealstage"),
		CreatedAt:      firstNonBlank(o.Prop("createdate"), o.CreatedAt),
		LastModifiedAt: firstNonBlank(o.Prop("hs_lastmodifieddate"), o.UpdatedAt),
		CloseDate:      o.Prop("closedate"),
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
