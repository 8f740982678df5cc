package person

import "time"

type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	BirthDate *string   `json:"birth_date,omitempty"`
	Memo      *string   `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PersonInput struct {
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	BirthDate *string `json:"birth_date"`
	Memo      *string `json:"memo"`
}

// TagRef is a tag attached to a person, as returned by the tag listing.
type TagRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
}
