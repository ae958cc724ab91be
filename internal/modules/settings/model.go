// README: Platform settings keys and entry model.
package settings

import "time"

type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Well-known keys. Values are integers in minor currency units.
const (
	KeyDefaultCommission = "default_commission"
	KeyTaxiBasePrice     = "taxi_base_price"
	KeyTaxiPricePerKm    = "taxi_price_per_km"
	KeyDeliveryBasePrice = "delivery_base_price"
	KeyDeliveryPerKm     = "delivery_price_per_km"
)
