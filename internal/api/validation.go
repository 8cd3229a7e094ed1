package api

import "fmt"

// Validate checks that RegisterRequest has all required fields.
func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if r.Role == "" {
		return fmt.Errorf("role is required")
	}
	return nil
}

// Validate checks that LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// Validate checks that ListingCreateRequest has all required fields.
func (r *ListingCreateRequest) Validate() error {
	if r.CropName == "" {
		return fmt.Errorf("crop_name is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if r.BasePrice < 0 {
		return fmt.Errorf("base_price must not be negative")
	}
	if r.CurrentBid < 0 {
		return fmt.Errorf("current_bid must not be negative")
	}
	if r.Location.Name == "" {
		return fmt.Errorf("location name is required")
	}
	return nil
}

// Validate checks that EscrowStartRequest is well formed. Zero values are
// allowed; the coordinator resolves them against the listing.
func (r *EscrowStartRequest) Validate() error {
	if r.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}

// Validate checks that MessageRequest has a body.
func (r *MessageRequest) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// Validate checks that AnalyzeRequest has a description.
func (r *AnalyzeRequest) Validate() error {
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}
