// Package audience compiles declarative audience definition graphs into
// resolved recipient sets.
package audience

import (
	"fmt"
	"strings"

	"github.com/aikyo-io/campaign-engine/models"
)

// nodeFields is the fixed queryable field set per node kind. EVENTS
// additionally accepts any "payload.*" path, handled in KindHasField.
var nodeFields = map[models.NodeKind]map[string]bool{
	models.NodeKindCustomers: {
		"id":                     true,
		"type":                   true,
		"identifiers.email":      true,
		"identifiers.phone":      true,
		"identifiers.lineUserId": true,
		"identifiers.psid":       true,
		"profile.name":           true,
		"profile.companyName":    true,
	},
	models.NodeKindBillings: {
		"id":            true,
		"customerId":    true,
		"invoiceNumber": true,
		"status":        true,
		"issueDate":     true,
		"paidDate":      true,
		"amount":        true,
		"currency":      true,
	},
	models.NodeKindEvents: {
		"id":         true,
		"customerId": true,
		"type":       true,
		"timestamp":  true,
	},
	models.NodeKindCustomerTags: {
		"customerId": true,
		"tagId":      true,
		"createdAt":  true,
	},
}

// KindHasField reports whether field is queryable on the given node kind
func KindHasField(kind models.NodeKind, field string) bool {
	if kind == models.NodeKindEvents && strings.HasPrefix(field, "payload.") && len(field) > len("payload.") {
		return true
	}
	fields, ok := nodeFields[kind]
	if !ok {
		return false
	}
	return fields[field]
}

// row is a flattened record of one node's data source, keyed by field path
type row map[string]string

func customerRow(c *models.Customer) row {
	r := row{
		"id":   fmt.Sprintf("%d", c.ID),
		"type": string(c.Type),
	}
	if c.Identifiers.Email != nil {
		r["identifiers.email"] = *c.Identifiers.Email
	}
	if c.Identifiers.Phone != nil {
		r["identifiers.phone"] = *c.Identifiers.Phone
	}
	if c.Identifiers.LineUserID != nil {
		r["identifiers.lineUserId"] = *c.Identifiers.LineUserID
	}
	if c.Identifiers.PSID != nil {
		r["identifiers.psid"] = *c.Identifiers.PSID
	}
	if c.Profile.Name != nil {
		r["profile.name"] = *c.Profile.Name
	}
	if c.Profile.CompanyName != nil {
		r["profile.companyName"] = *c.Profile.CompanyName
	}
	return r
}

func billingRow(b *models.Billing) row {
	r := row{
		"id":            fmt.Sprintf("%d", b.ID),
		"customerId":    fmt.Sprintf("%d", b.CustomerID),
		"invoiceNumber": b.InvoiceNumber,
		"status":        string(b.Status),
		"issueDate":     b.IssueDate.Format("2006-01-02"),
		"amount":        fmt.Sprintf("%d", b.Amount),
		"currency":      b.Currency,
	}
	if b.PaidDate != nil {
		r["paidDate"] = b.PaidDate.Format("2006-01-02")
	}
	return r
}

func eventRow(e *models.Event) row {
	r := row{
		"id":         fmt.Sprintf("%d", e.ID),
		"customerId": fmt.Sprintf("%d", e.CustomerID),
		"type":       e.Type,
		"timestamp":  e.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for k, v := range e.Payload {
		r["payload."+k] = fmt.Sprintf("%v", v)
	}
	return r
}

func customerTagRow(ct *models.CustomerTag) row {
	return row{
		"customerId": fmt.Sprintf("%d", ct.CustomerID),
		"tagId":      fmt.Sprintf("%d", ct.TagID),
		"createdAt":  ct.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
