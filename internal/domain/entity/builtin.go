package entity

var location = Relation{
	Name:     "location",
	Table:    "locations",
	FKColumn: "location_id",
	Fields: []Field{
		{Name: "street_address", Rule: Scalar, Kind: Text},
		{Name: "apt_suite", Rule: Scalar, Kind: Tag},
		{Name: "city", Rule: Scalar, Kind: Tag},
		{Name: "state_province", Rule: Scalar, Kind: Tag},
		{Name: "postal_code", Rule: Scalar, Kind: Tag},
		{Name: "country", Rule: Scalar, Kind: Tag},
		{Name: "latitude", Rule: Scalar, Kind: Numeric},
		{Name: "longitude", Rule: Scalar, Kind: Numeric},
		{Name: "timezone", Rule: Scalar, Kind: Tag},
	},
}

// Builtin returns the descriptors of the booking backend's searchable entities.
func Builtin() []Descriptor {
	return []Descriptor{
		{
			Name:           "organizations",
			Table:          "organizations",
			Index:          "organizations",
			TenantField:    IDField,
			SearchFields:   []string{"organization_name", "description"},
			OrderingFields: []string{IDField, "organization_name", "created_at"},
			Fields: []Field{
				{Name: "organization_name", Rule: Scalar, Kind: Text},
				{Name: "subdomain", Rule: Scalar, Kind: Tag},
				{Name: "description", Rule: Scalar, Kind: Text},
				{Name: "status", Rule: Scalar, Kind: Tag},
				{Name: "confirmed", Rule: Scalar, Kind: Bool},
				{Name: "terms_agreement", Rule: Scalar, Kind: Bool},
				{Name: "is_organization_created", Rule: Scalar, Kind: Bool},
				{Name: "user_id", Rule: Reference, Kind: Numeric},
				{Name: "language_id", Rule: Reference, Kind: Numeric},
				{Name: "currency_id", Rule: Reference, Kind: Numeric},
				{Name: "subscription_plan_id", Rule: Reference, Kind: Numeric},
				{Name: "location_id", Rule: Reference, Kind: Numeric},
				{Name: "created_at", Rule: Scalar, Kind: Time},
			},
			Relations: []Relation{location},
		},
		{
			Name:           "brands",
			Table:          "brands",
			Index:          "brands",
			TenantField:    "organization_id",
			BrandField:     IDField,
			SearchFields:   []string{"name", "description"},
			OrderingFields: []string{IDField, "name", "created_at"},
			Fields: []Field{
				{Name: "organization_id", Rule: Reference, Kind: Numeric},
				{Name: "name", Rule: Scalar, Kind: Text},
				{Name: "description", Rule: Scalar, Kind: Text},
				{Name: "currency", Rule: Scalar, Kind: Tag},
				{Name: "language", Rule: Scalar, Kind: Tag},
				{Name: "date_format", Rule: Scalar, Kind: Tag},
				{Name: "default", Column: "is_default", Rule: Scalar, Kind: Bool},
				{Name: "tax_rate", Rule: Scalar, Kind: Numeric},
				{Name: "rate_inflator", Rule: Scalar, Kind: Numeric},
				{Name: "settings", Rule: Scalar, Kind: Text},
				{Name: "cms_version", Rule: Scalar, Kind: Tag},
				{Name: "created_at", Rule: Scalar, Kind: Time},
			},
		},
		{
			Name:           "properties",
			Table:          "properties",
			Index:          "properties",
			TenantField:    "organization_id",
			SearchFields:   []string{"name", "summary_headline", "summary_description"},
			OrderingFields: []string{IDField, "name", "created_at"},
			Fields: []Field{
				{Name: "organization_id", Rule: Reference, Kind: Numeric},
				{Name: "property_type_id", Rule: Reference, Kind: Numeric},
				{Name: "name", Rule: Scalar, Kind: Text},
				{Name: "active", Rule: Scalar, Kind: Bool},
				{Name: "multi_unit", Rule: Scalar, Kind: Bool},
				{Name: "summary_headline", Rule: Scalar, Kind: Text},
				{Name: "summary_description", Rule: Scalar, Kind: Text},
				{Name: "unit_code", Rule: Scalar, Kind: Tag},
				{Name: "external_id", Rule: Scalar, Kind: Tag},
				{Name: "active_on_airbnb", Rule: Scalar, Kind: Bool},
				{Name: "active_on_homeaway", Rule: Scalar, Kind: Bool},
				{Name: "created_at", Rule: Scalar, Kind: Time},
			},
		},
		{
			Name:           "bookings",
			Table:          "bookings",
			Index:          "bookings",
			TenantField:    "organization_id",
			SearchFields:   []string{"booking_code", "type"},
			OrderingFields: []string{IDField, "check_in", "check_out", "created_at", "price_total"},
			Fields: []Field{
				{Name: "organization_id", Rule: Reference, Kind: Numeric},
				{Name: "unit_listing_id", Rule: Reference, Kind: Numeric},
				{Name: "customer_id", Rule: Reference, Kind: Numeric},
				{Name: "booking_code", Rule: Scalar, Kind: Text},
				{Name: "type", Rule: Scalar, Kind: Text},
				{Name: "archived", Rule: Scalar, Kind: Bool},
				{Name: "cancelled", Rule: Scalar, Kind: Bool},
				{Name: "confirmed", Rule: Scalar, Kind: Bool},
				{Name: "num_guests", Rule: Scalar, Kind: Numeric},
				{Name: "price_total", Rule: Scalar, Kind: Numeric},
				{Name: "price_paid", Rule: Scalar, Kind: Numeric},
				{Name: "check_in", Rule: Scalar, Kind: Time},
				{Name: "check_out", Rule: Scalar, Kind: Time},
				{Name: "created_at", Rule: Scalar, Kind: Time},
			},
		},
	}
}
