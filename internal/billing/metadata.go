package billing

import (
	"fmt"
	"strconv"
)

// Metadata keys written on every eSIM checkout session.
const (
	MetaProductType         = "product_type"
	MetaEmail               = "email"
	MetaPackageID           = "package_id"
	MetaPackageName         = "package_name"
	MetaCountryCode         = "country_code"
	MetaCountryTitle        = "country_title"
	MetaDataAmount          = "data_amount"
	MetaValidityDays        = "validity_days"
	MetaPriceCents          = "price_cents"
	MetaNetCostCents        = "net_cost_cents"
	MetaLoyaltyCreditsCents = "loyalty_credits_cents"
	MetaOwnerUserID         = "owner_user_id"
)

// ProductTypeESIM marks sessions the fulfillment webhook acts on.
const ProductTypeESIM = "esim"

// OrderMetadata is everything needed to provision an order, carried on the
// payment session itself.
type OrderMetadata struct {
	Email               string
	PackageID           string
	PackageName         string
	CountryCode         string
	CountryTitle        string
	DataAmount          string
	ValidityDays        int32
	PriceCents          int64
	NetCostCents        int64
	LoyaltyCreditsCents int64
	OwnerUserID         string
}

// Map encodes m as Stripe metadata. Empty optional values are omitted.
func (m OrderMetadata) Map() map[string]string {
	out := map[string]string{
		MetaProductType:         ProductTypeESIM,
		MetaEmail:               m.Email,
		MetaPackageID:           m.PackageID,
		MetaPackageName:         m.PackageName,
		MetaCountryCode:         m.CountryCode,
		MetaCountryTitle:        m.CountryTitle,
		MetaDataAmount:          m.DataAmount,
		MetaValidityDays:        strconv.FormatInt(int64(m.ValidityDays), 10),
		MetaPriceCents:          strconv.FormatInt(m.PriceCents, 10),
		MetaNetCostCents:        strconv.FormatInt(m.NetCostCents, 10),
		MetaLoyaltyCreditsCents: strconv.FormatInt(m.LoyaltyCreditsCents, 10),
	}
	if m.OwnerUserID != "" {
		out[MetaOwnerUserID] = m.OwnerUserID
	}
	return out
}

// IsESIM reports whether metadata belongs to an eSIM checkout.
func IsESIM(metadata map[string]string) bool {
	return metadata[MetaProductType] == ProductTypeESIM
}

// ParseOrderMetadata decodes metadata written by OrderMetadata.Map.
func ParseOrderMetadata(metadata map[string]string) (OrderMetadata, error) {
	if !IsESIM(metadata) {
		return OrderMetadata{}, fmt.Errorf("billing: metadata product_type %q is not %q", metadata[MetaProductType], ProductTypeESIM)
	}
	if metadata[MetaPackageID] == "" {
		return OrderMetadata{}, fmt.Errorf("billing: metadata missing %s", MetaPackageID)
	}

	m := OrderMetadata{
		Email:        metadata[MetaEmail],
		PackageID:    metadata[MetaPackageID],
		PackageName:  metadata[MetaPackageName],
		CountryCode:  metadata[MetaCountryCode],
		CountryTitle: metadata[MetaCountryTitle],
		DataAmount:   metadata[MetaDataAmount],
		OwnerUserID:  metadata[MetaOwnerUserID],
	}

	var err error
	if m.ValidityDays, err = parseInt32(metadata, MetaValidityDays); err != nil {
		return OrderMetadata{}, err
	}
	if m.PriceCents, err = parseInt64(metadata, MetaPriceCents); err != nil {
		return OrderMetadata{}, err
	}
	if m.NetCostCents, err = parseInt64(metadata, MetaNetCostCents); err != nil {
		return OrderMetadata{}, err
	}
	if m.LoyaltyCreditsCents, err = parseInt64(metadata, MetaLoyaltyCreditsCents); err != nil {
		return OrderMetadata{}, err
	}

	return m, nil
}

func parseInt64(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("billing: metadata %s: %w", key, err)
	}
	return v, nil
}

func parseInt32(metadata map[string]string, key string) (int32, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("billing: metadata %s: %w", key, err)
	}
	return int32(v), nil
}
