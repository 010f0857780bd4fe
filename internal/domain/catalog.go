package domain

// Product is a catalog record as returned by the product service.
type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Price    float64  `json:"price"`
	Image    string   `json:"image"`
	URL      string   `json:"url"`
	Aliases  []string `json:"aliases"`
}

// RelatedQuery are the filters sent with a related-items lookup.
type RelatedQuery struct {
	ProductID  string
	NumResults int
	Feature    string
	UserID     string
	Filter     string
}

// Recommendation is one entry of the related-items response.
type Recommendation struct {
	Product RecommendedProduct `json:"product"`
}

// Order is the payload submitted to the order service.
type Order struct {
	Items          []OrderItem    `json:"items"`
	Total          float64        `json:"total"`
	DeliveryType   string         `json:"delivery_type"`
	Username       string         `json:"username"`
	BillingAddress BillingAddress `json:"billing_address"`
	Channel        string         `json:"channel"`
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type BillingAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// OrderReceipt is the order service's view of a created order. The id is
// numeric in some deployments and a string in others.
type OrderReceipt struct {
	ID    any         `json:"id"`
	Items []OrderItem `json:"items"`
	Total float64     `json:"total"`
}

// UserDetails is the identity provider's userinfo document.
type UserDetails struct {
	Username         string `json:"username"`
	ProfileUserID    string `json:"custom:profile_user_id"`
	ProfileFirstName string `json:"custom:profile_first_name"`
	ProfileLastName  string `json:"custom:profile_last_name"`
	Email            string `json:"email"`
}

// Position is a [longitude, latitude] pair.
type Position [2]float64

// Place is the nearest point of interest found by the geospatial index.
type Place struct {
	AddressNumber string
	Street        string
	Position      Position
}

// Email is a multi-part transactional message.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}
