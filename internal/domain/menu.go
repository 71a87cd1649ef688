package domain

type VendorStatus string

const (
	VendorStatusOpen   VendorStatus = "open"
	VendorStatusClosed VendorStatus = "closed"
	VendorStatusBusy   VendorStatus = "busy"
)

func (s VendorStatus) Valid() bool {
	return s == VendorStatusOpen || s == VendorStatusClosed || s == VendorStatusBusy
}

type Vendor struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status VendorStatus `json:"status"`
}

// MenuItem is the catalog record for one dish. PrepTimeMinutes is the
// per-unit preparation time the ETA predictor multiplies by quantity.
type MenuItem struct {
	ID              string `json:"id"`
	VendorID        string `json:"vendor_id"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	Category        string `json:"category"`
	PrepTimeMinutes int    `json:"prep_time_minutes"`
	Available       bool   `json:"available"`
}
