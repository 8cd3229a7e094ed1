package api

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Location string `json:"location"`
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LocationRequest is a geolocation snapshot supplied at listing creation.
type LocationRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// ListingCreateRequest is the payload for posting a new listing.
type ListingCreateRequest struct {
	CropName     string          `json:"crop_name"`
	Quantity     int64           `json:"quantity"`
	QualityScore int             `json:"quality_score"`
	BasePrice    int64           `json:"base_price"`
	CurrentBid   int64           `json:"current_bid"`
	Location     LocationRequest `json:"location"`
	ImageURL     string          `json:"image_url"`
	ListingType  string          `json:"listing_type"`
}

// EscrowStartRequest opens negotiation on a listing. Quantity zero means the
// listing's full quantity; amount zero means current bid times quantity.
type EscrowStartRequest struct {
	Quantity int64 `json:"quantity"`
	Amount   int64 `json:"amount"`
}

// MessageRequest posts one chat message to a listing's thread.
type MessageRequest struct {
	Text string `json:"text"`
}

// AnalyzeRequest submits a free-text produce description for extraction.
type AnalyzeRequest struct {
	Description string `json:"description"`
}
