// Package domain – short-link target descriptors.
package domain

// TargetType enumerates the entity kinds a short link can point at.
type TargetType string

const (
	TargetProduct   TargetType = "product"
	TargetStore     TargetType = "store"
	TargetOrder     TargetType = "order"
	TargetPromotion TargetType = "promotion"
	TargetReferral  TargetType = "referral"
)

// TargetSchemaVersion is the current descriptor schema. Stored links carry
// the version they were minted with so resolvers can migrate old rows.
const TargetSchemaVersion = 1

// ValidTargetType reports whether t names a known target type.
func ValidTargetType(t TargetType) bool {
	switch t {
	case TargetProduct, TargetStore, TargetOrder, TargetPromotion, TargetReferral:
		return true
	}
	return false
}

// TargetDescriptor identifies what a short link resolves to, plus optional
// campaign attribution. Key is the natural key of the referenced entity:
// product id, store id, order id, promotion code, or the referring identity.
type TargetDescriptor struct {
	SchemaVersion int        `json:"schema_version"`
	Type          TargetType `json:"type"`
	Key           string     `json:"key"`
	Campaign      string     `json:"campaign,omitempty"`
	Medium        string     `json:"medium,omitempty"`
	Source        string     `json:"source,omitempty"`
}

// SharePreview is the human-shareable rendering of a link target, shaped
// for chat/social unfurls. Fields are populated per target type; Price is
// only set for product targets.
type SharePreview struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Price       string `json:"price,omitempty"`
}
