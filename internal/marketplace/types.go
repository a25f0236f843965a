package marketplace

// Service is one bookable entry of a company's catalog.
type Service struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type servicesResponse struct {
	Services []Service `json:"services"`
}

// BookingRequest is the body of a booking write. Date and time travel
// combined in DateTime; there are no separate date/time keys.
type BookingRequest struct {
	ServiceID     string `json:"serviceId"`
	DateTime      string `json:"dateTime"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	PetName       string `json:"petName"`
	Notes         string `json:"notes"`
}
